package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/policy"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// imageResponse is what one image attempt observed
type imageResponse struct {
	statusCode  int
	finalURL    string
	contentType string
	sniffed     string
	size        int64 // -1 when unknown
	tooLarge    bool
	dims        *models.Dimensions
}

// CheckImage validates an image reference: data URIs offline, everything else with a GET
// whose content type, size and (optionally) dimensions are checked.
func (p *Prober) CheckImage(ctx context.Context, raw string) models.ProbeResult {
	r := models.ProbeResult{URL: raw, Kind: models.KindImage}
	u, done := p.classifyLocal(&r)
	if done {
		return stamp(&r)
	}
	if r.Resource == models.ResourceDataURI {
		p.checkDataURIImage(&r)
		return stamp(&r)
	}

	host := u.Hostname()
	target := u.String()
	log := p.log.WithFields(logrus.Fields{"url": target, "kind": models.KindImage})

	budget := policy.RetryBudget(host, p.opts.RetryCount)
	resp, attempts, err := fetch.Retry(ctx, budget+1, fetch.FixedBackoff(p.opts.RetryDelay),
		func(ctx context.Context, attempt int) (imageResponse, error) {
			if attempt > 0 {
				log.WithField("attempt", attempt+1).Debug("Retrying image probe")
			}
			return p.attemptImage(ctx, target, log)
		})
	r.Attempts = attempts

	if err != nil {
		if errors.Is(err, utils.ErrAccessRestricted) && p.accessFallback(ctx, &r, target, log) {
			return stamp(&r)
		}
		p.classifyFailure(&r, host, err)
		log.WithFields(logrus.Fields{"status": r.Status, "attempts": attempts, "error_category": r.ErrorCategory}).Debugf("Image probe failed: %v", err)
		return stamp(&r)
	}

	r.StatusCode = resp.statusCode
	r.Status = models.CategorizeStatusCode(resp.statusCode)
	r.StatusMessage = models.StatusCodeMessage(resp.statusCode)
	r.FinalURL = resp.finalURL
	if resp.size >= 0 {
		r.ContentLength = resp.size
	}
	mt := mediaType(resp.contentType)
	if mt == "" || mt == "application/octet-stream" {
		mt = resp.sniffed
	}
	r.ContentType = mt

	maxSize := p.opts.MaxImageSize
	switch {
	case resp.tooLarge || (maxSize > 0 && resp.size > maxSize):
		reject(&r, models.StatusError, tooLargeMessage(resp.size, maxSize), utils.ErrImageTooLarge)
	case r.Status == models.StatusSuccess && !IsImageMIME(mt):
		if mt == "" {
			mt = "unknown"
		}
		reject(&r, models.StatusInvalid, fmt.Sprintf("Not an image (content type %s)", mt), utils.ErrNotImage)
	case r.Status == models.StatusSuccess:
		r.IsImage = true
		r.ImageDimensions = resp.dims
	}
	r.MightBeValid = policy.MightBeValid(&r, host)
	policy.ReclassifyResponse(&r)

	log.WithFields(logrus.Fields{"status": r.Status, "code": r.StatusCode, "error_category": r.ErrorCategory}).Debug("Image probe complete")
	return stamp(&r)
}

// attemptImage performs one GET under its own deadline. Only the header, the sniffing
// window and (for bodies of unknown length) up to the size ceiling are read.
func (p *Prober) attemptImage(ctx context.Context, target string, log *logrus.Entry) (imageResponse, error) {
	actx, cancel := context.WithTimeout(ctx, p.opts.ImageTimeout)
	defer cancel()

	resp, err := p.fetcher.Do(actx, fetch.Request{Method: http.MethodGet, URL: target, Accept: fetch.AcceptImage})
	if err != nil {
		if resp != nil {
			fetch.Discard(resp)
		}
		return imageResponse{}, permanentErr(err)
	}
	defer fetch.Discard(resp)

	out := imageResponse{
		statusCode:  resp.StatusCode,
		finalURL:    finalURL(resp, target),
		contentType: resp.Header.Get("Content-Type"),
		size:        resp.ContentLength,
	}
	maxSize := p.opts.MaxImageSize
	if maxSize > 0 && resp.ContentLength > maxSize {
		out.tooLarge = true
		return out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, nil
	}

	var body io.Reader = resp.Body
	if maxSize > 0 {
		body = io.LimitReader(resp.Body, maxSize+1)
	}
	counter := &countingReader{r: body}
	br := bufio.NewReaderSize(counter, sniffLen)
	head, _ := br.Peek(sniffLen)
	out.sniffed = sniff(head)

	mt := mediaType(out.contentType)
	if mt == "" || mt == "application/octet-stream" {
		mt = out.sniffed
	}
	if p.opts.CheckDimensions && decodableTypes[mt] {
		if dims, err := decodeDimensions(br); err == nil {
			out.dims = &dims
		} else {
			log.Debugf("Could not read image dimensions: %v", err)
		}
	}

	if resp.ContentLength < 0 && maxSize > 0 {
		if _, err := io.Copy(io.Discard, br); err != nil {
			return imageResponse{}, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		out.size = counter.n
		out.tooLarge = counter.n > maxSize
	}
	return out, nil
}

// accessFallback runs the opaque re-request and then the decode facility for an
// access-restricted image. It reports whether either settled the result.
func (p *Prober) accessFallback(ctx context.Context, r *models.ProbeResult, target string, log *logrus.Entry) bool {
	if p.opts.OpaqueFallback {
		actx, cancel := context.WithTimeout(ctx, p.opts.ImageTimeout)
		resp, err := p.fetcher.Do(actx, fetch.Request{Method: http.MethodGet, URL: target, Accept: fetch.AcceptImage, Mode: fetch.ModeOpaque})
		if resp != nil {
			fetch.Discard(resp)
		}
		cancel()
		if err == nil {
			r.Status = models.StatusSuccess
			r.StatusMessage = "Image loaded (response metadata not accessible)"
			r.NoMetadataAccess = true
			r.IsImage = true
			return true
		}
		log.Debugf("Opaque fallback failed: %v", err)
	}

	if p.opts.DecodeFallback && p.decoder != nil {
		dims, err := p.decoder.DecodeConfig(ctx, target)
		if err == nil {
			r.Status = models.StatusSuccess
			r.StatusMessage = "Image decoded (response metadata not accessible)"
			r.ImageDimensions = &dims
			r.UsedFallbackDecode = true
			r.IsImage = true
			return true
		}
		log.Debugf("Decode fallback failed: %v", err)
	}
	return false
}

// checkDataURIImage validates a data URI image without network access
func (p *Prober) checkDataURIImage(r *models.ProbeResult) {
	r.IsDataURI = true
	if !p.opts.AllowDataURLs {
		r.Status = models.StatusSkipped
		r.StatusMessage = "Data URLs are disabled by configuration"
		return
	}

	d, err := ParseDataURI(r.URL)
	if err != nil {
		reject(r, models.StatusInvalid, "Invalid data URI", err)
		return
	}
	r.ContentType = d.MediaType
	r.ContentLength = d.EstimatedSize()
	if maxSize := p.opts.MaxImageSize; maxSize > 0 && r.ContentLength > maxSize {
		reject(r, models.StatusError, tooLargeMessage(r.ContentLength, maxSize), utils.ErrImageTooLarge)
		return
	}

	data, err := d.Decode()
	if err != nil {
		reject(r, models.StatusInvalid, "Invalid data URI: payload could not be decoded", err)
		return
	}

	mt := d.MediaType
	if !IsImageMIME(mt) {
		sniffed := sniff(data)
		if !IsImageMIME(sniffed) {
			reject(r, models.StatusInvalid, fmt.Sprintf("Data URI is not an image (%s)", d.MediaType), utils.ErrNotImage)
			return
		}
		mt = sniffed
		r.ContentType = mt
	}

	if p.opts.CheckDimensions && decodableTypes[mt] {
		dims, err := decodeDimensions(bytes.NewReader(data))
		if err != nil {
			reject(r, models.StatusInvalid, "Image data could not be decoded", fmt.Errorf("%w: %w", utils.ErrDecode, err))
			return
		}
		r.ImageDimensions = &dims
	}
	r.IsImage = true
	r.Status = models.StatusSuccess
	r.StatusMessage = "Valid data URI image"
}

func tooLargeMessage(size, maxSize int64) string {
	if size < 0 {
		size = maxSize + 1
	}
	return fmt.Sprintf("Image too large (%s, max %s)", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(maxSize)))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
