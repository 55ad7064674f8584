package storage

import (
	"encoding/json"
	"testing"

	"short-drama-service/internal/config"
)

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr bool
	}{
		{"endpoint", config.Config{MinioEndpoint: "localhost:9000", MinioBucket: "assets"}, "http://localhost:9000/assets", false},
		{"ssl endpoint", config.Config{MinioEndpoint: "s3.example.com", MinioSSL: true, MinioBucket: "assets"}, "https://s3.example.com/assets", false},
		{"public url wins", config.Config{MinioEndpoint: "minio:9000", MinioPublicURL: "https://cdn.example.com/", MinioBucket: "assets"}, "https://cdn.example.com/assets", false},
		{"bad public url", config.Config{MinioEndpoint: "minio:9000", MinioPublicURL: "not a url", MinioBucket: "assets"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PublicBaseURL(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("PublicBaseURL() = %q, want error", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("PublicBaseURL() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestReadOnlyPolicy(t *testing.T) {
	raw, err := ReadOnlyPolicy("assets", PublicPrefix)
	if err != nil {
		t.Fatalf("ReadOnlyPolicy() error = %v", err)
	}

	var p bucketPolicy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("policy is not JSON: %v", err)
	}
	if len(p.Statement) != 1 {
		t.Fatalf("statements = %d, want 1", len(p.Statement))
	}
	st := p.Statement[0]
	if st.Effect != "Allow" || len(st.Action) != 1 || st.Action[0] != "s3:GetObject" {
		t.Errorf("statement = %+v, want read-only allow", st)
	}
	if st.Resource[0] != "arn:aws:s3:::assets/characters/*" {
		t.Errorf("resource = %q", st.Resource[0])
	}
}
