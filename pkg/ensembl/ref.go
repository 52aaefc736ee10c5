package ensembl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const DefaultFTPBaseURL = "http://ftp.ensembl.org/pub"

// FileLink describes one downloadable reference file.
type FileLink struct {
	URL            string `json:"ftp"`
	EnsemblRelease int    `json:"ensembl_release"`
	ReleaseDate    string `json:"release_date"`
	ReleaseTime    string `json:"release_time"`
	Bytes          string `json:"bytes"`
}

// RefLinks bundles the annotation (GTF), transcriptome (cDNA FASTA) and
// genome (DNA FASTA) links for one species and release.
type RefLinks struct {
	Species       string   `json:"species"`
	Release       int      `json:"ensembl_release"`
	Annotation    FileLink `json:"annotation"`
	Transcriptome FileLink `json:"transcriptome"`
	Genome        FileLink `json:"genome"`
}

// RefClient scrapes the Ensembl FTP site's directory listings.
type RefClient struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewRefClient(log *zap.Logger) *RefClient {
	return &RefClient{
		BaseURL: DefaultFTPBaseURL,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Log:     log,
	}
}

// listingEntry is one row of an FTP directory listing: the link plus the
// date/time and size text that follows it.
type listingEntry struct {
	Name string
	Href string
	Date string
	Time string
	Size string
}

// LatestRelease finds the highest release-N directory on the FTP site.
func (c *RefClient) LatestRelease(ctx context.Context) (int, error) {

	entries, err := c.fetchListing(ctx, c.BaseURL+"/")
	if err != nil {
		return 0, err
	}

	latest := 0
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name, "/")
		if !strings.HasPrefix(name, "release-") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, "release-"))
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("no release directories found under %s", c.BaseURL)
	}

	return latest, nil
}

// Links fetches the GTF, cDNA and DNA links for a species. release == 0
// selects the latest release; a pinned release newer than the latest is an
// error.
func (c *RefClient) Links(ctx context.Context, species string, release int) (*RefLinks, error) {

	latest, err := c.LatestRelease(ctx)
	if err != nil {
		return nil, err
	}
	if release == 0 {
		release = latest
	} else if release > latest {
		return nil, fmt.Errorf("requested Ensembl release %d is newer than the latest release %d", release, latest)
	}

	c.Log.Info("fetching reference links",
		zap.String("species", species),
		zap.Int("release", release))

	links := &RefLinks{Species: species, Release: release}

	gtfURL := fmt.Sprintf("%s/release-%d/gtf/%s/", c.BaseURL, release, species)
	links.Annotation, err = c.findLink(ctx, gtfURL, release, fmt.Sprintf("%d.gtf.gz", release))
	if err != nil {
		return nil, fmt.Errorf("no GTF found for %s: %w", species, err)
	}

	cdnaURL := fmt.Sprintf("%s/release-%d/fasta/%s/cdna/", c.BaseURL, release, species)
	links.Transcriptome, err = c.findLink(ctx, cdnaURL, release, "cdna.all.fa.gz")
	if err != nil {
		return nil, fmt.Errorf("no cDNA FASTA found for %s: %w", species, err)
	}

	// Primary assembly when available, toplevel otherwise.
	dnaURL := fmt.Sprintf("%s/release-%d/fasta/%s/dna/", c.BaseURL, release, species)
	links.Genome, err = c.findLink(ctx, dnaURL, release, ".dna.primary_assembly.fa.gz")
	if err != nil {
		links.Genome, err = c.findLink(ctx, dnaURL, release, ".dna.toplevel.fa.gz")
		if err != nil {
			return nil, fmt.Errorf("no DNA FASTA found for %s: %w", species, err)
		}
	}

	return links, nil
}

func (c *RefClient) findLink(ctx context.Context, dirURL string, release int, nameSuffix string) (FileLink, error) {

	entries, err := c.fetchListing(ctx, dirURL)
	if err != nil {
		return FileLink{}, err
	}

	for _, e := range entries {
		if !strings.HasSuffix(e.Name, nameSuffix) {
			continue
		}
		return FileLink{
			URL:            dirURL + e.Href,
			EnsemblRelease: release,
			ReleaseDate:    e.Date,
			ReleaseTime:    e.Time,
			Bytes:          e.Size,
		}, nil
	}

	return FileLink{}, fmt.Errorf("no listing entry matches %q under %s", nameSuffix, dirURL)
}

func (c *RefClient) fetchListing(ctx context.Context, url string) ([]listingEntry, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing %s returned status %d", url, resp.StatusCode)
	}

	return parseListing(resp.Body)
}

// parseListing extracts the entries of a server-generated directory index.
// Each entry is an <a> element; the text node that follows it carries the
// modification date/time and size.
func parseListing(r io.Reader) ([]listingEntry, error) {

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory listing: %w", err)
	}

	var entries []listingEntry

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			entry := listingEntry{
				Name: nodeText(n),
				Href: attrValue(n, "href"),
			}
			if trailer := trailingText(n); trailer != "" {
				fields := strings.Fields(trailer)
				if len(fields) >= 3 {
					entry.Date = fields[0]
					entry.Time = fields[1]
					entry.Size = fields[len(fields)-1]
				}
			}
			entries = append(entries, entry)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return entries, nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}

func trailingText(n *html.Node) string {
	for sibling := n.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type == html.TextNode && strings.TrimSpace(sibling.Data) != "" {
			return strings.TrimSpace(sibling.Data)
		}
		if sibling.Type == html.ElementNode {
			break
		}
	}
	return ""
}
