package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/policy"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// errMethodUnsupported marks a HEAD answered with 405/501 so the attempt falls back to GET
var errMethodUnsupported = errors.New("HEAD not supported")

// linkResponse is what one attempt observed before its body was discarded
type linkResponse struct {
	statusCode    int
	finalURL      string
	contentType   string
	contentLength int64
}

// CheckLink runs the link state machine for raw and always returns a terminal result.
func (p *Prober) CheckLink(ctx context.Context, raw string) models.ProbeResult {
	r := models.ProbeResult{URL: raw, Kind: models.KindLink}
	u, done := p.classifyLocal(&r)
	if done {
		return stamp(&r)
	}
	if r.Resource == models.ResourceDataURI {
		p.checkDataURILink(&r)
		return stamp(&r)
	}

	host := u.Hostname()
	target := u.String()
	log := p.log.WithFields(logrus.Fields{"url": target, "kind": models.KindLink})

	budget := policy.RetryBudget(host, p.opts.RetryCount)
	resp, attempts, err := fetch.Retry(ctx, budget+1, fetch.FixedBackoff(p.opts.RetryDelay),
		func(ctx context.Context, attempt int) (linkResponse, error) {
			if attempt > 0 {
				log.WithField("attempt", attempt+1).Debug("Retrying link probe")
			}
			return p.attemptLink(ctx, target, log)
		})
	r.Attempts = attempts

	if err != nil {
		p.classifyFailure(&r, host, err)
		log.WithFields(logrus.Fields{"status": r.Status, "attempts": attempts, "error_category": r.ErrorCategory}).Debugf("Link probe failed: %v", err)
		return stamp(&r)
	}

	r.StatusCode = resp.statusCode
	r.Status = models.CategorizeStatusCode(resp.statusCode)
	r.StatusMessage = models.StatusCodeMessage(resp.statusCode)
	r.FinalURL = resp.finalURL
	r.ContentType = resp.contentType
	r.ContentLength = resp.contentLength
	r.MightBeValid = policy.MightBeValid(&r, host)
	policy.ReclassifyResponse(&r)

	if p.opts.CheckAnchors && u.Fragment != "" && r.Status == models.StatusSuccess && !policy.IsMapService(u) {
		page := r.FinalURL
		if page == "" {
			page = target
		}
		ar := p.anchors.Verify(ctx, page, u.Fragment)
		r.Anchor = &ar
		if !ar.Valid {
			r.Status = models.StatusWarning
			r.StatusMessage = fmt.Sprintf(`Anchor "%s" not found`, u.Fragment)
		}
	}

	log.WithFields(logrus.Fields{"status": r.Status, "code": r.StatusCode}).Debug("Link probe complete")
	return stamp(&r)
}

// attemptLink performs one HEAD probe under its own deadline, falling back to GET when the
// server rejects HEAD or the transport fails in a way a GET might not.
func (p *Prober) attemptLink(ctx context.Context, target string, log *logrus.Entry) (linkResponse, error) {
	actx, cancel := context.WithTimeout(ctx, p.opts.LinkTimeout)
	defer cancel()

	resp, err := p.fetcher.Do(actx, fetch.Request{Method: http.MethodHead, URL: target, Accept: fetch.AcceptDocument})
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		fetch.Discard(resp)
		err = errMethodUnsupported
	}
	if err != nil {
		if resp != nil && !errors.Is(err, errMethodUnsupported) {
			fetch.Discard(resp)
		}
		if !shouldFallbackToGet(actx, err) {
			return linkResponse{}, permanentErr(err)
		}
		log.Debugf("HEAD failed (%v), falling back to GET", err)
		resp, err = p.fetcher.Do(actx, fetch.Request{Method: http.MethodGet, URL: target, Accept: fetch.AcceptDocument})
		if err != nil {
			if resp != nil {
				fetch.Discard(resp)
			}
			return linkResponse{}, permanentErr(err)
		}
	}
	defer fetch.Discard(resp)

	return linkResponse{
		statusCode:    resp.StatusCode,
		finalURL:      finalURL(resp, target),
		contentType:   resp.Header.Get("Content-Type"),
		contentLength: resp.ContentLength,
	}, nil
}

// shouldFallbackToGet reports whether a GET is worth trying after a failed HEAD in the same attempt
func shouldFallbackToGet(ctx context.Context, err error) bool {
	if errors.Is(err, errMethodUnsupported) {
		return true
	}
	if ctx.Err() != nil || utils.IsTimeout(err) {
		return false
	}
	return !isPermanentFailure(err)
}

// finalURL is where the probe ended up: the last request URL when redirects were followed,
// or the resolved Location of an unfollowed 3xx.
func finalURL(resp *http.Response, target string) string {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc, err := resp.Location(); err == nil {
			return loc.String()
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return target
}

// checkDataURILink validates a data URI used as a hyperlink without decoding it
func (p *Prober) checkDataURILink(r *models.ProbeResult) {
	r.IsDataURI = true
	d, err := ParseDataURI(r.URL)
	if err != nil {
		reject(r, models.StatusInvalid, "Invalid data URI", err)
		return
	}
	r.ContentType = d.MediaType
	r.ContentLength = d.EstimatedSize()
	r.Status = models.StatusSuccess
	r.StatusMessage = "Data URI (not checked)"
}
