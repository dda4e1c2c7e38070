package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/page-auditor/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  models.ResourceKind
	}{
		{"#section", models.ResourceFragment},
		{"  #x", models.ResourceFragment},
		{"#", models.ResourceFragment},
		{"mailto:a@b.com", models.ResourceSpecialProtocol},
		{"MAILTO:a@b.com", models.ResourceSpecialProtocol},
		{"tel:+3312345678", models.ResourceSpecialProtocol},
		{"javascript:void(0)", models.ResourceSpecialProtocol},
		{"itms-apps://itunes.apple.com/app/id1", models.ResourceSpecialProtocol},
		{"ftp://files.example.com/a", models.ResourceSpecialProtocol},
		{"data:image/png;base64,AAAA", models.ResourceDataURI},
		{"DATA:text/plain,hi", models.ResourceDataURI},
		{"https://example.com/a", models.ResourceCheckable},
		{"http://example.com", models.ResourceCheckable},
		{"example.com/page", models.ResourceCheckable},
		{"//cdn.example.com/x.js", models.ResourceCheckable},
		{"gopher://example.com", models.ResourceUnparseable},
		{"exa mple.com", models.ResourceUnparseable},
		{"", models.ResourceUnparseable},
		{"   ", models.ResourceUnparseable},
		{"/relative", models.ResourceUnparseable},
		{"http://", models.ResourceUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestClassify_Total(t *testing.T) {
	valid := map[models.ResourceKind]bool{
		models.ResourceFragment: true, models.ResourceSpecialProtocol: true, models.ResourceDataURI: true,
		models.ResourceCheckable: true, models.ResourceUnparseable: true,
	}
	for _, in := range append(normalizeCorpus, "\x00", "http://%41", "https://[::1", ":::", "ht!tp://x") {
		assert.NotPanics(t, func() {
			assert.True(t, valid[Classify(in)], "Classify(%q)", in)
		})
	}
}

func TestSpecialProtocol(t *testing.T) {
	assert.Equal(t, "mailto", SpecialProtocol("mailto:a@b.com"))
	assert.Equal(t, "itms-apps", SpecialProtocol("itms-apps://x"))
	assert.Equal(t, "itms", SpecialProtocol("itms://x"))
	assert.Equal(t, "fb-messenger", SpecialProtocol("FB-Messenger://user"))
	assert.Equal(t, "", SpecialProtocol("https://example.com"))
	assert.Equal(t, "", SpecialProtocol("telephone"))
	assert.Len(t, SpecialProtocols(), 32)
}

func TestProtocolMessage(t *testing.T) {
	assert.Contains(t, ProtocolMessage("javascript"), "JavaScript")
	assert.NotEqual(t, ProtocolMessage("javascript"), ProtocolMessage("mailto"))
	assert.Contains(t, ProtocolMessage("geo"), "geo")
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("https://Example.COM/a"))
	assert.Equal(t, "www.linkedin.com", ExtractDomain("www.linkedin.com/in/someone"))
	assert.Equal(t, "", ExtractDomain("#top"))
	assert.Equal(t, "", ExtractDomain("mailto:a@b.com"))
	assert.Equal(t, "", ExtractDomain("data:image/png;base64,AAAA"))
	assert.Equal(t, "", ExtractDomain("exa mple.com"))
}

func TestExtractProtocol(t *testing.T) {
	assert.Equal(t, "fragment", ExtractProtocol("#a"))
	assert.Equal(t, "mailto", ExtractProtocol("mailto:a@b.com"))
	assert.Equal(t, "data", ExtractProtocol("data:,x"))
	assert.Equal(t, "http", ExtractProtocol("http://example.com"))
	assert.Equal(t, "https", ExtractProtocol("example.com"))
	assert.Equal(t, "unknown", ExtractProtocol("gopher://x"))
}

func TestIsProblematicDomain(t *testing.T) {
	assert.True(t, IsProblematicDomain("https://www.linkedin.com/in/x"))
	assert.True(t, IsProblematicDomain("twitter.com/someone"))
	assert.False(t, IsProblematicDomain("https://example.com"))
	assert.False(t, IsProblematicDomain("mailto:someone@linkedin.com"))
}

func TestIsImageURL(t *testing.T) {
	assert.True(t, IsImageURL("https://example.com/logo.PNG"))
	assert.True(t, IsImageURL("https://example.com/a.jpg?w=100"))
	assert.True(t, IsImageURL("https://example.com/images/banner"))
	assert.True(t, IsImageURL("data:image/gif;base64,R0lGOD"))
	assert.False(t, IsImageURL("https://example.com/page.html"))
	assert.False(t, IsImageURL("mailto:a@b.png"))
	assert.False(t, IsImageURL(""))
}
