package storage

import (
	"context"
	"net/url"
	"testing"
)

func TestPublicURL(t *testing.T) {
	cases := []struct {
		base, key, want string
	}{
		{"https://files.example.com", "matches/1/final-report.json", "https://files.example.com/matches/1/final-report.json"},
		{"https://files.example.com/", "/matches/1/final-report.json", "https://files.example.com/matches/1/final-report.json"},
		{"https://cdn.example.com/reports", "matches/2/final-report.json", "https://cdn.example.com/reports/matches/2/final-report.json"},
		{"https://cdn.example.com/reports/", "", ""},
	}
	for _, tc := range cases {
		base, err := url.Parse(tc.base)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.base, err)
		}
		if got := publicURL(base, tc.key); got != tc.want {
			t.Errorf("publicURL(%q, %q) = %q, want %q", tc.base, tc.key, got, tc.want)
		}
	}
}

func TestNewCloudflareR2UploaderValidatesConfig(t *testing.T) {
	cases := map[string]CloudflareR2UploaderConfig{
		"missing credentials": {AccountID: "acc", BucketName: "b", PublicBaseURL: "https://x.example"},
		"missing account":     {AccessKeyID: "k", SecretAccessKey: "s", BucketName: "b", PublicBaseURL: "https://x.example"},
		"relative public url": {AccountID: "acc", AccessKeyID: "k", SecretAccessKey: "s", BucketName: "b", PublicBaseURL: "reports"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewCloudflareR2Uploader(context.Background(), cfg); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}
