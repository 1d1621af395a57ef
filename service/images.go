package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"pairchat/models"
)

const maxImageBytes = 5 * 1024 * 1024

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// storeImage validates raw image bytes and hands them to the image store
// under a fresh name.
func storeImage(ctx context.Context, store ImageStore, newID func() string, data []byte) (string, error) {
	if store == nil {
		return "", models.NewValidationError(map[string]string{"image": "image uploads are disabled"})
	}
	if len(data) > maxImageBytes {
		return "", models.NewValidationError(map[string]string{"image": "too large (max 5MB)"})
	}
	ext, ok := imageExtensions[http.DetectContentType(data)]
	if !ok {
		return "", models.NewValidationError(map[string]string{"image": "must be jpeg, png, gif or webp"})
	}

	url, err := store.Save(ctx, idFrom(newID)+ext, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}
