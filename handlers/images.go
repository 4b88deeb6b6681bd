package handlers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"jotlet/config"
	"jotlet/models"
	"jotlet/utils"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
}

// processedImage is a re-encoded upload ready for storage.
type processedImage struct {
	data        []byte
	ext         string
	contentType string
}

// readUpload reads the "image" form file, enforcing maxSize.
func readUpload(r *http.Request, maxSize int64, logger *slog.Logger) ([]byte, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, fmt.Errorf("no image uploaded")
		}
		return nil, fmt.Errorf("could not get form file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Error("Failed to close upload file", "error", err)
		}
	}()

	limitedReader := &io.LimitedReader{R: file, N: maxSize + 1}
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("could not read file data: %w", err)
	}
	if limitedReader.N == 0 {
		return nil, fmt.Errorf("file is larger than the %dMB limit", maxSize/1024/1024)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	// Magic byte validation
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		logger.Warn("User uploaded file with invalid MIME type", "detected_type", contentType, "filename", header.Filename)
		return nil, fmt.Errorf("unsupported file type: %s. Only JPG, PNG, GIF, and WebP are allowed", contentType)
	}
	return data, nil
}

// processImage decodes data with EXIF orientation applied, shrinks it with
// resize and re-encodes it. PNG stays PNG; everything else becomes JPEG.
func processImage(data []byte, resize func(image.Image) image.Image) (*processedImage, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image format, could not decode config: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image with orientation correction: %w", err)
	}
	img = resize(img)

	var buf bytes.Buffer
	out := &processedImage{ext: "jpeg", contentType: "image/jpeg"}
	if format == "png" {
		out.ext, out.contentType = "png", "image/png"
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	out.data = buf.Bytes()
	return out, nil
}

// fitPostImage bounds post images to the configured box.
func fitPostImage(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= config.MaxPostImageWidth && b.Dy() <= config.MaxPostImageHeight {
		return img
	}
	return imaging.Fit(img, config.MaxPostImageWidth, config.MaxPostImageHeight, imaging.Lanczos)
}

// fitBackground narrows wide backgrounds, keeping the aspect ratio.
func fitBackground(img image.Image) image.Image {
	if img.Bounds().Dx() <= config.MaxBackgroundWidth {
		return img
	}
	return imaging.Resize(img, config.MaxBackgroundWidth, 0, imaging.Lanczos)
}

// storeImage saves the processed bytes and records the image row, removing
// the file again if the row cannot be written.
func storeImage(r *http.Request, app App, logger *slog.Logger, img *models.Image, processed *processedImage) error {
	img.ID = uuid.NewString()
	key := fmt.Sprintf("images/%s/%s.%s", img.Type, img.ID, processed.ext)
	url, err := app.Storage().SaveFile(r.Context(), key, processed.data, processed.contentType)
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	img.URL = url
	img.ContentType = processed.contentType
	if err := app.DB().CreateImage(r.Context(), img); err != nil {
		if derr := app.Storage().DeleteFile(r.Context(), url); derr != nil {
			logger.Error("Failed to remove orphaned upload", "url", url, "error", derr)
		}
		return err
	}
	return nil
}

// HandleUploadPostImage stores an image for embedding in posts on the board.
func HandleUploadPostImage(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUploadPostImage")

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded", "ip", ip)
		respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please wait a moment.", app)
		return
	}
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	if !checkerFrom(r).PostCreateAllowed(b, nil, utils.GetTime()) {
		respondError(w, http.StatusForbidden, "Posting is closed on this board right now.", app)
		return
	}
	count, err := app.DB().CountPostImages(r.Context(), b.ID)
	if err != nil {
		respondDBError(w, err, "Images", logger, app)
		return
	}
	if count >= config.MaxPostImageCount {
		respondError(w, http.StatusBadRequest, "This board has reached its image limit.", app)
		return
	}

	data, err := readUpload(r, config.MaxPostImageFileSize, logger)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Image upload failed: "+err.Error(), app)
		return
	}
	processed, err := processImage(data, fitPostImage)
	if err != nil {
		logger.Warn("Image processing failed", "error", err)
		respondError(w, http.StatusBadRequest, "Image processing failed: "+err.Error(), app)
		return
	}
	img := &models.Image{Type: models.ImageTypePost, BoardID: &b.ID}
	if err := storeImage(r, app, logger, img, processed); err != nil {
		logger.Error("Failed to store post image", "error", err)
		respondError(w, http.StatusInternalServerError, "Could not store image.", app)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"image": img}, app)
}

// HandleUploadBackground adds an image to the shared background library.
func HandleUploadBackground(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUploadBackground")
	data, err := readUpload(r, config.MaxBackgroundSize, logger)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Image upload failed: "+err.Error(), app)
		return
	}
	processed, err := processImage(data, fitBackground)
	if err != nil {
		logger.Warn("Image processing failed", "error", err)
		respondError(w, http.StatusBadRequest, "Image processing failed: "+err.Error(), app)
		return
	}
	img := &models.Image{Type: models.ImageTypeBackground, Title: strings.TrimSpace(r.FormValue("title"))}
	if err := storeImage(r, app, logger, img, processed); err != nil {
		logger.Error("Failed to store background image", "error", err)
		respondError(w, http.StatusInternalServerError, "Could not store image.", app)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"image": img}, app)
}

// HandleListBackgrounds lists the background library.
func HandleListBackgrounds(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleListBackgrounds")
	images, err := app.DB().ListBackgroundImages(r.Context())
	if err != nil {
		respondDBError(w, err, "Images", logger, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"images": images}, app)
}

// HandleListPostImages lists a board's uploaded post images.
func HandleListPostImages(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleListPostImages")
	b, ok := loadBoard(w, r, app, logger)
	if !ok {
		return
	}
	images, err := app.DB().ListPostImages(r.Context(), b.ID)
	if err != nil {
		respondDBError(w, err, "Images", logger, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"images": images}, app)
}

// HandleDeleteImage removes any image. Boards using it as a background
// fall back to their colour and are told their preferences changed.
func HandleDeleteImage(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeleteImage")
	url, slugs, err := app.DB().DeleteImage(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		respondDBError(w, err, "Image", logger, app)
		return
	}
	for _, slug := range slugs {
		app.Notifier().PreferencesSaved(r.Context(), slug)
	}
	if err := app.Storage().DeleteFile(r.Context(), url); err != nil {
		logger.Error("Failed to delete image file", "url", url, "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"success": "Image deleted."}, app)
}
