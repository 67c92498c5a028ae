package supabase

import (
	"strings"

	"geo-ingest-backend/internal/config"
	"github.com/supabase-community/supabase-go"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// Storage returns a blob store bound to the configured bucket that shares
// the client's storage connection.
func (c *Client) Storage() *StorageClient {
	return &StorageClient{
		client:  c.Supabase.Storage,
		bucket:  c.Config.SupabaseStorageBucket,
		baseURL: strings.TrimSuffix(c.Config.SupabaseURL, "/"),
	}
}
