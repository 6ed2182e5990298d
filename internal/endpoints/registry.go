package endpoints

import (
	"fmt"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://knowledge-capture.onrender.com"

// Registry maps logical backend operations onto URLs under one origin.
type Registry struct {
	base string
}

func New(baseURL string) (*Registry, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", baseURL)
	}
	return &Registry{base: strings.TrimRight(u.String(), "/")}, nil
}

func (r *Registry) BaseURL() string {
	return r.base
}

func (r *Registry) Upload() string {
	return r.base + "/files/upload"
}

func (r *Registry) ListFiles(userEmail string) string {
	return r.base + "/files/list?" + userQuery(userEmail)
}

func (r *Registry) DeleteFile(fileID, userEmail string) string {
	return r.base + "/files/" + url.PathEscape(fileID) + "?" + userQuery(userEmail)
}

func (r *Registry) ChatQuery() string {
	return r.base + "/chat/query"
}

func userQuery(userEmail string) string {
	return url.Values{"user_email": []string{userEmail}}.Encode()
}
