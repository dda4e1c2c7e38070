package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

const (
	defaultMaxAnchorBody = 10 << 20
	defaultAnchorTimeout = 30 * time.Second
)

// AnchorVerifier confirms that a fragment names an addressable element of a page.
// Concurrent checks against the same page share one fetch.
type AnchorVerifier struct {
	fetcher *fetch.Fetcher
	timeout time.Duration
	maxBody int64
	group   singleflight.Group
	log     *logrus.Entry
}

// NewAnchorVerifier creates a verifier whose page fetches use their own timeout
func NewAnchorVerifier(fetcher *fetch.Fetcher, timeout time.Duration, maxBody int64, log *logrus.Entry) *AnchorVerifier {
	if maxBody <= 0 {
		maxBody = defaultMaxAnchorBody
	}
	if timeout <= 0 {
		timeout = defaultAnchorTimeout
	}
	return &AnchorVerifier{
		fetcher: fetcher,
		timeout: timeout,
		maxBody: maxBody,
		log:     log,
	}
}

// Verify fetches pageURL and looks for name. A fetch or parse failure is reported on the
// result as checked but not valid; it never fails the caller.
//
// The shared page fetch is bounded by the verifier's timeout, not by any caller's ctx.
// Each caller stops waiting when its own ctx ends.
func (v *AnchorVerifier) Verify(ctx context.Context, pageURL, name string) models.AnchorResult {
	res := models.AnchorResult{Checked: true, Name: name}
	page, _, _ := strings.Cut(pageURL, "#")

	ch := v.group.DoChan(page, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()
		return v.fetchDocument(fctx, page)
	})

	var (
		doc    any
		err    error
		shared bool
	)
	select {
	case out := <-ch:
		doc, err, shared = out.Val, out.Err, out.Shared
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		res.Error = err.Error()
		v.log.WithFields(logrus.Fields{"url": page, "anchor": name}).Debugf("Anchor check failed: %v", err)
		return res
	}
	if shared {
		v.log.WithField("url", page).Debug("Anchor check reused in-flight page fetch")
	}

	res.Evidence = FindAnchor(doc.(*goquery.Document), name)
	res.Valid = res.Evidence.HasID || res.Evidence.HasAnchorTag || res.Evidence.HasNameAttr || res.Evidence.HasInternalLink
	return res
}

func (v *AnchorVerifier) fetchDocument(ctx context.Context, page string) (*goquery.Document, error) {
	resp, err := v.fetcher.Do(ctx, fetch.Request{Method: http.MethodGet, URL: page, Accept: fetch.AcceptDocument})
	if err != nil {
		if resp != nil {
			fetch.Discard(resp)
		}
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer fetch.Discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, v.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// FindAnchor tests the four ways a page can make name addressable
func FindAnchor(doc *goquery.Document, name string) models.AnchorEvidence {
	return models.AnchorEvidence{
		HasID:           attrEquals(doc.Find("[id]"), "id", name),
		HasAnchorTag:    attrEquals(doc.Find("a[name]"), "name", name),
		HasNameAttr:     attrEquals(doc.Find("[name]"), "name", name),
		HasInternalLink: attrEquals(doc.Find("a[href]"), "href", "#"+name),
	}
}

func attrEquals(sel *goquery.Selection, attr, want string) bool {
	found := false
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr(attr); ok && v == want {
			found = true
		}
		return !found
	})
	return found
}
