package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/orchestrate"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

const (
	defaultMaxResults = 100
	maxMaxResults     = 1000
)

// handleStartAudit handles the start_audit tool
func (s *Server) handleStartAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	targets := orchestrate.Targets{
		PageURL: request.GetString("page_url", ""),
		URLs:    stringSlice(args, "urls"),
	}
	for _, u := range stringSlice(args, "links") {
		targets.Links = append(targets.Links, models.CheckTarget{URL: u})
	}
	for _, u := range stringSlice(args, "images") {
		targets.Images = append(targets.Images, models.CheckTarget{URL: u})
	}
	if targets.Len() == 0 {
		return mcp.NewToolResultError("at least one of links, images or urls is required"), nil
	}

	opts := s.checkOptions(args)
	run, err := s.auditor.Start(s.ctx, targets, opts)
	if errors.Is(err, utils.ErrRunActive) {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "An audit is already in progress",
		}
		if active := s.auditor.Active(); active != nil {
			result["run_id"] = active.ID()
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start audit: %v", err)), nil
	}
	s.runs.Add(run)

	st := run.Status()
	result := map[string]interface{}{
		"status":       "started",
		"message":      "Audit started successfully",
		"run_id":       run.ID(),
		"links_total":  st.Links.Total,
		"images_total": st.Images.Total,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// checkOptions resolves the server config and applies per-call overrides
func (s *Server) checkOptions(args map[string]any) config.CheckOptions {
	opts := s.cfg.AppConfig.Resolve()
	if v, ok := boolArg(args, "check_anchors"); ok {
		opts.CheckAnchors = v
	}
	if v, ok := boolArg(args, "check_external"); ok {
		opts.CheckExternal = v
	}
	if v, ok := boolArg(args, "check_images"); ok {
		opts.CheckImages = v
	}
	if v, ok := boolArg(args, "follow_redirects"); ok {
		opts.FollowRedirects = v
	}
	return opts
}

// handleStopAudit handles the stop_audit tool
func (s *Server) handleStopAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run := s.auditor.Active()
	if run == nil {
		result := map[string]interface{}{
			"status":  "idle",
			"message": "No audit is running",
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}
	run.Stop()
	result := map[string]interface{}{
		"status":  "stopping",
		"message": "Audit stop requested; in-flight probes will finish",
		"run_id":  run.ID(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetAuditStatus handles the get_audit_status tool
func (s *Server) handleGetAuditStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := s.runs.Get(request.GetString("run_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st := run.Status()
	result := map[string]interface{}{
		"run_id":     run.ID(),
		"status":     StateOf(run),
		"started_at": st.StartedAt.Format(time.RFC3339),
		"links":      st.Links,
		"images":     st.Images,
	}
	if st.PageURL != "" {
		result["page_url"] = st.PageURL
	}
	if !st.Active {
		summary := run.Report().Summary
		result["completed_at"] = summary.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = summary.Duration.Seconds()
		result["summary"] = summary
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetAuditResults handles the get_audit_results tool
func (s *Server) handleGetAuditResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := s.runs.Get(request.GetString("run_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	match, err := resultFilter(request.GetString("filter", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults := request.GetInt("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	report := run.Report()
	links, linksTruncated := filterResults(report.Links, match, maxResults)
	images, imagesTruncated := filterResults(report.Images, match, maxResults)

	result := map[string]interface{}{
		"run_id":    run.ID(),
		"status":    StateOf(run),
		"summary":   report.Summary,
		"links":     links,
		"images":    images,
		"truncated": linksTruncated || imagesTruncated,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCheckURL handles the check_url tool
func (s *Server) handleCheckURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	kind := models.TargetKind(request.GetString("kind", string(models.KindLink)))
	if kind != models.KindLink && kind != models.KindImage {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind '%s' (supported: link, image)", kind)), nil
	}

	r := s.auditor.Probe(ctx, models.CheckTarget{URL: urlStr, Kind: kind}, s.cfg.AppConfig.Resolve())
	result := map[string]interface{}{
		"result": r,
		"bucket": r.Status.Bucket(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// --- Helpers ---

// resultFilter accepts a summary bucket name or an exact status; empty matches everything
func resultFilter(filter string) (func(models.ProbeResult) bool, error) {
	if filter == "" {
		return func(models.ProbeResult) bool { return true }, nil
	}
	switch b := models.Bucket(filter); b {
	case models.BucketSuccess, models.BucketWarnings, models.BucketErrors, models.BucketOther:
		return func(r models.ProbeResult) bool { return r.Status.Bucket() == b }, nil
	}
	if st := models.Status(filter); st.IsValid() {
		return func(r models.ProbeResult) bool { return r.Status == st }, nil
	}
	return nil, fmt.Errorf("unknown filter '%s'", filter)
}

func filterResults(results []models.ProbeResult, match func(models.ProbeResult) bool, max int) ([]models.ProbeResult, bool) {
	out := make([]models.ProbeResult, 0, min(len(results), max))
	for _, r := range results {
		if !match(r) {
			continue
		}
		if len(out) == max {
			return out, true
		}
		out = append(out, r)
	}
	return out, false
}

// stringSlice reads an array argument, tolerating both []any (JSON-decoded) and []string
func stringSlice(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func boolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
