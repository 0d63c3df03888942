package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// ObjectStore persists a blob and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, folder, name string, r io.Reader) (string, error)
}

// Cloudinary stores objects as cloudinary image assets.
type Cloudinary struct {
	uploader *uploader.API
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &Cloudinary{uploader: up}, nil
}

func (c *Cloudinary) Put(ctx context.Context, folder, name string, r io.Reader) (string, error) {
	result, err := c.uploader.Upload(ctx, r, uploader.UploadParams{
		Folder:   folder,
		PublicID: publicID(name),
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", errors.New(result.Error.Message)
	}
	return result.SecureURL, nil
}

// publicID drops the extension; cloudinary derives the format itself.
func publicID(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
