package pubfront

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/pubfront/content"
)

const (
	maxImageWidth = 2000
	jpegQuality   = 80
)

// assetFilename maps an image asset reference to its file name on disk,
// <id>-<width>x<height>.<format>, the same name the image CDN uses.
func assetFilename(ref string) (content.Asset, string, error) {
	asset, err := content.ParseAssetRef(ref)
	if err != nil {
		return content.Asset{}, "", err
	}
	name := fmt.Sprintf("%s-%dx%d.%s", asset.ID, asset.Width, asset.Height, asset.Format)
	if filepath.Base(name) != name || strings.Contains(name, "..") {
		return content.Asset{}, "", fmt.Errorf("pubfront: unsafe asset ref %q", ref)
	}
	return asset, name, nil
}

// resizeImage decodes src and scales it down to width, keeping the aspect
// ratio. Images already narrower than width are re-encoded unscaled. PNG
// stays PNG; everything else is encoded as JPEG.
func resizeImage(src io.Reader, width int, format string) ([]byte, string, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if width > 0 && w > width {
		newH := h * width / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// handleAssetImage serves a local image asset, scaled down when ?w= asks
// for it.
func (a *App) handleAssetImage(c echo.Context) error {
	asset, name, err := assetFilename(c.Param("ref"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	path := filepath.Join(a.Config.AssetsDir, name)

	width := 0
	if raw := c.QueryParam("w"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil || width < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid width")
		}
		if width > maxImageWidth {
			width = maxImageWidth
		}
	}
	if width == 0 || width >= asset.Width {
		if _, err := os.Stat(path); err != nil {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.File(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	defer f.Close()
	data, contentType, err := resizeImage(f, width, asset.Format)
	if err != nil {
		return fmt.Errorf("pubfront: resize %s: %w", name, err)
	}
	return c.Blob(http.StatusOK, contentType, data)
}
