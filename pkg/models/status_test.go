package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUnset, "unset"},
		{StatusSuccess, "success"},
		{StatusClientError, "clientError"},
		{StatusServerError, "serverError"},
		{StatusSkipped, "skipped"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestStatus_IsValid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.IsValid(), "Status(%q).IsValid()", string(s))
	}
	assert.False(t, StatusUnset.IsValid())
	assert.False(t, Status("arbitrary").IsValid())
}

func TestStatus_Bucket(t *testing.T) {
	tests := []struct {
		status Status
		want   Bucket
	}{
		{StatusSuccess, BucketSuccess},
		{StatusRedirect, BucketWarnings},
		{StatusWarning, BucketWarnings},
		{StatusSkipped, BucketWarnings},
		{StatusClientError, BucketErrors},
		{StatusServerError, BucketErrors},
		{StatusInvalid, BucketErrors},
		{StatusError, BucketErrors},
		{StatusInfo, BucketOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.Bucket(), "Status(%q).Bucket()", string(tt.status))
	}
	assert.True(t, StatusInvalid.IsFailure())
	assert.False(t, StatusWarning.IsFailure())
}

func TestCategorizeStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want Status
	}{
		{103, StatusInfo},
		{200, StatusSuccess},
		{204, StatusSuccess},
		{301, StatusRedirect},
		{308, StatusRedirect},
		{404, StatusClientError},
		{418, StatusClientError},
		{500, StatusServerError},
		{503, StatusServerError},
		{0, StatusError},
		{999, StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeStatusCode(tt.code), "CategorizeStatusCode(%d)", tt.code)
	}
}

func TestStatusCodeMessage(t *testing.T) {
	assert.Equal(t, "Not Found", StatusCodeMessage(404))
	assert.Equal(t, "Early Hints", StatusCodeMessage(103))
	assert.Equal(t, "Unknown Status", StatusCodeMessage(799))
}
