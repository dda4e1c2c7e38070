package models

import "time"

// TargetKind tags a CheckTarget as a hyperlink or an image reference
type TargetKind string

const (
	KindLink  TargetKind = "link"
	KindImage TargetKind = "image"
)

// CheckTarget is a single URL handed over by the page harvester
type CheckTarget struct {
	URL  string     `json:"url" yaml:"url"`
	Kind TargetKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// ResourceKind is the classifier's verdict on a raw URL string
type ResourceKind string

const (
	ResourceFragment        ResourceKind = "fragment"         // "#name"
	ResourceSpecialProtocol ResourceKind = "special_protocol" // mailto:, tel:, javascript:, ...
	ResourceDataURI         ResourceKind = "data_uri"         // data:
	ResourceCheckable       ResourceKind = "checkable"        // http/https
	ResourceUnparseable     ResourceKind = "unparseable"      // anything else
)

// Dimensions holds decoded pixel dimensions of an image
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AnchorEvidence records which fragment patterns matched in the page body
type AnchorEvidence struct {
	HasID           bool `json:"hasId"`
	HasAnchorTag    bool `json:"hasAnchorTag"`
	HasNameAttr     bool `json:"hasNameAttr"`
	HasInternalLink bool `json:"hasInternalLink"`
}

// AnchorResult is the Anchor Verifier's verdict for one fragment
type AnchorResult struct {
	Checked  bool           `json:"checked"`
	Valid    bool           `json:"valid"`
	Name     string         `json:"name"`
	Evidence AnchorEvidence `json:"evidence"`
	Error    string         `json:"error,omitempty"`
}

// ProbeResult is the terminal outcome for one CheckTarget.
// Fields not relevant to the probe path that produced it stay at their zero value.
type ProbeResult struct {
	URL           string       `json:"url"`
	NormalizedURL string       `json:"normalizedUrl,omitempty"`
	FinalURL      string       `json:"finalUrl,omitempty"`
	Kind          TargetKind   `json:"kind"`
	Resource      ResourceKind `json:"resource,omitempty"`

	Status        Status `json:"status"`
	StatusCode    int    `json:"statusCode,omitempty"`
	StatusMessage string `json:"statusMessage"`
	Protocol      string `json:"protocol,omitempty"`

	ContentType   string `json:"contentType,omitempty"`
	ContentLength int64  `json:"contentLength,omitempty"`

	IsFragment          bool   `json:"isFragment,omitempty"`
	IsSpecialProtocol   bool   `json:"isSpecialProtocol,omitempty"`
	IsJavaScript        bool   `json:"isJavaScript,omitempty"`
	IsDataURI           bool   `json:"isDataUri,omitempty"`
	IsImage             bool   `json:"isImage,omitempty"`
	IsProblematicDomain bool   `json:"isProblematicDomain,omitempty"`
	DomainCategory      string `json:"domainCategory,omitempty"`
	IsAccessRestricted  bool   `json:"isAccessRestricted,omitempty"`
	NoMetadataAccess    bool   `json:"noMetadataAccess,omitempty"`
	UsedFallbackDecode  bool   `json:"usedFallbackDecode,omitempty"`
	MightBeValid        bool   `json:"mightBeValid,omitempty"`
	FromCache           bool   `json:"fromCache,omitempty"`

	ErrorCategory   string        `json:"errorCategory,omitempty"` // Set when an error decided the verdict
	Attempts        int           `json:"attempts,omitempty"`
	ImageDimensions *Dimensions   `json:"imageDimensions,omitempty"`
	Anchor          *AnchorResult `json:"anchor,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}
