package engine

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"revclean/internal/apigee"
)

func TestOpError_Error(t *testing.T) {
	err := &OpError{Op: OpDelete, Kind: apigee.KindProxies, Entity: "proxy-A", Revision: 3, Err: errors.New("conflict")}
	assert.Equal(t, "delete revision proxies/proxy-A r3: conflict", err.Error())

	err = &OpError{Op: OpListEntities, Kind: apigee.KindSharedFlows, Err: errors.New("timeout")}
	assert.Equal(t, "list entities sharedflows: timeout", err.Error())
}

func TestPresentError(t *testing.T) {
	apiErr := &apigee.APIError{
		Method:     http.MethodDelete,
		Path:       "/organizations/acme/apis/proxy-A/revisions/3",
		StatusCode: http.StatusNotFound,
		Body:       `{"message":"revision not found"}`,
	}
	wrapped := &OpError{Op: OpDelete, Kind: apigee.KindProxies, Entity: "proxy-A", Revision: 3, Err: apiErr}

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    string
	}{
		{name: "nil", err: nil, want: "unknown error"},
		{name: "api error terse", err: wrapped, want: "delete revision r3: management API request failed (404 Not Found)"},
		{name: "api error verbose", err: wrapped, verbose: true, want: wrapped.Error()},
		{name: "plain op error", err: &OpError{Op: OpListRevisions, Kind: apigee.KindProxies, Entity: "p", Err: errors.New("eof")}, want: "list revisions: eof"},
		{name: "bare error", err: errors.New("plain"), want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, presentError(tt.err, tt.verbose))
		})
	}
}
