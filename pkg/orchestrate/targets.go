package orchestrate

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/parse"
)

// Targets is the input handed over by the page harvester. URLs holds an unsorted
// flat list that is split into links and images by URL shape.
type Targets struct {
	PageURL string               `yaml:"page_url,omitempty" json:"page_url,omitempty"`
	Links   []models.CheckTarget `yaml:"links,omitempty" json:"links,omitempty"`
	Images  []models.CheckTarget `yaml:"images,omitempty" json:"images,omitempty"`
	URLs    []string             `yaml:"urls,omitempty" json:"urls,omitempty"`
}

// Len is the number of targets before admission
func (t Targets) Len() int {
	return len(t.Links) + len(t.Images) + len(t.URLs)
}

// LoadTargets reads a YAML (or JSON) targets file
func LoadTargets(path string) (Targets, error) {
	var t Targets
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("reading targets file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parsing targets file '%s': %w", path, err)
	}
	return t, nil
}

// Admit turns harvested targets into the link and image work lists of a run.
// Page-relative references are resolved against PageURL. Blank URLs are kept so the
// prober reports them as invalid.
// With CheckExternal off, checkable links to another host are dropped; with CheckImages
// off, the image list is empty.
func Admit(t Targets, opts config.CheckOptions, log *logrus.Entry) (links, images []models.CheckTarget) {
	var base *url.URL
	if t.PageURL != "" {
		if u, err := parse.ParseCheckable(t.PageURL); err == nil {
			base = u
		} else {
			log.WithField("page_url", t.PageURL).Warn("Page URL is not a checkable URL, relative targets are left unresolved")
		}
	}

	rawLinks := make([]string, 0, len(t.Links))
	rawImages := make([]string, 0, len(t.Images))
	for _, l := range t.Links {
		rawLinks = append(rawLinks, l.URL)
	}
	for _, i := range t.Images {
		rawImages = append(rawImages, i.URL)
	}
	for _, u := range t.URLs {
		if parse.IsImageURL(parse.Resolve(base, u)) {
			rawImages = append(rawImages, u)
		} else {
			rawLinks = append(rawLinks, u)
		}
	}

	dropped := 0
	for _, raw := range rawLinks {
		resolved := parse.Resolve(base, raw)
		if !opts.CheckExternal && isExternal(base, resolved) {
			dropped++
			continue
		}
		links = append(links, models.CheckTarget{URL: resolved, Kind: models.KindLink})
	}

	if opts.CheckImages {
		for _, raw := range rawImages {
			images = append(images, models.CheckTarget{URL: parse.Resolve(base, raw), Kind: models.KindImage})
		}
	} else {
		dropped += len(rawImages)
	}

	log.WithFields(logrus.Fields{"links": len(links), "images": len(images), "dropped": dropped}).Debug("Targets admitted")
	return links, images
}

// isExternal reports whether a checkable link points at a host other than the page's.
// Without a page URL nothing counts as external.
func isExternal(base *url.URL, raw string) bool {
	if base == nil || parse.Classify(raw) != models.ResourceCheckable {
		return false
	}
	return !strings.EqualFold(parse.ExtractDomain(raw), base.Hostname())
}
