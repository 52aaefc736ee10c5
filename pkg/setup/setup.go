// Package setup downloads the local ELM reference files the motif search
// depends on.
package setup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/swanpat/elmscan/internal/util"
)

// Basenames of the reference files inside the data directory.
const (
	ClassesFile        = "elm_classes.tsv"
	InstancesFile      = "elm_instances.tsv"
	InstancesFastaFile = "elm_instances.fasta"
)

// Download locations on the ELM resource website.
const (
	classesURL        = "http://elm.eu.org/elms/elms_index.tsv"
	instancesURL      = "http://elm.eu.org/instances.tsv?q=*&taxon=&instance_logic="
	instancesFastaURL = "http://elm.eu.org/instances.fasta?q=*&taxon=&instance_logic="
)

// Installed reports whether all reference files are present under dataDir.
func Installed(dataDir string) bool {
	for _, name := range []string{ClassesFile, InstancesFile, InstancesFastaFile} {
		if !util.FileExists(filepath.Join(dataDir, name)) {
			return false
		}
	}
	return true
}

// Run downloads any reference file missing from dataDir, creating the
// directory when absent. Files already present are left untouched.
func Run(ctx context.Context, dataDir string, log *zap.Logger) error {

	if err := util.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	client := &http.Client{Timeout: 5 * time.Minute}

	downloads := []struct {
		name string
		url  string
	}{
		{ClassesFile, classesURL},
		{InstancesFile, instancesURL},
		{InstancesFastaFile, instancesFastaURL},
	}

	for _, d := range downloads {
		dest := filepath.Join(dataDir, d.name)
		if util.FileExists(dest) {
			log.Info("reference file already present, skipping", zap.String("file", dest))
			continue
		}

		log.Info("downloading reference file", zap.String("url", d.url), zap.String("dest", dest))
		if err := download(ctx, client, d.url, dest); err != nil {
			return fmt.Errorf("failed to download %s: %w", d.name, err)
		}
	}

	return nil
}

func download(ctx context.Context, client *http.Client, url, dest string) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	// Write to a temp name first so a partial download never looks installed.
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}
