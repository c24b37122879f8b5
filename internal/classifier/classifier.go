// Package classifier decides whether a discovered URL is a page to crawl or
// a typed resource to catalogue.
package classifier

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
)

// extensionCategories is the fallback table used when the MIME guess is
// unknown or ambiguous.
var extensionCategories = map[string]model.ResourceCategory{
	// images
	".jpg": model.CategoryImages, ".jpeg": model.CategoryImages, ".png": model.CategoryImages,
	".gif": model.CategoryImages, ".svg": model.CategoryImages, ".webp": model.CategoryImages,
	".ico": model.CategoryImages, ".bmp": model.CategoryImages, ".tif": model.CategoryImages,
	".tiff": model.CategoryImages, ".avif": model.CategoryImages, ".heic": model.CategoryImages,

	// documents
	".pdf": model.CategoryDocuments, ".doc": model.CategoryDocuments, ".docx": model.CategoryDocuments,
	".xls": model.CategoryDocuments, ".xlsx": model.CategoryDocuments, ".ppt": model.CategoryDocuments,
	".pptx": model.CategoryDocuments, ".odt": model.CategoryDocuments, ".ods": model.CategoryDocuments,
	".odp": model.CategoryDocuments, ".rtf": model.CategoryDocuments, ".txt": model.CategoryDocuments,
	".md": model.CategoryDocuments, ".epub": model.CategoryDocuments,

	// media
	".mp4": model.CategoryMedia, ".webm": model.CategoryMedia, ".ogv": model.CategoryMedia,
	".mov": model.CategoryMedia, ".avi": model.CategoryMedia, ".mkv": model.CategoryMedia,
	".mp3": model.CategoryMedia, ".wav": model.CategoryMedia, ".ogg": model.CategoryMedia,
	".flac": model.CategoryMedia, ".m4a": model.CategoryMedia, ".aac": model.CategoryMedia,
	".vtt": model.CategoryMedia, ".swf": model.CategoryMedia, ".m3u8": model.CategoryMedia,

	// code
	".js": model.CategoryCode, ".mjs": model.CategoryCode, ".css": model.CategoryCode,
	".map": model.CategoryCode, ".ts": model.CategoryCode, ".wasm": model.CategoryCode,

	// archives
	".zip": model.CategoryArchives, ".tar": model.CategoryArchives, ".gz": model.CategoryArchives,
	".tgz": model.CategoryArchives, ".bz2": model.CategoryArchives, ".xz": model.CategoryArchives,
	".7z": model.CategoryArchives, ".rar": model.CategoryArchives,

	// fonts
	".woff": model.CategoryFonts, ".woff2": model.CategoryFonts, ".ttf": model.CategoryFonts,
	".otf": model.CategoryFonts, ".eot": model.CategoryFonts,

	// data
	".json": model.CategoryData, ".csv": model.CategoryData, ".xml": model.CategoryData,
	".tsv": model.CategoryData, ".geojson": model.CategoryData, ".jsonld": model.CategoryData,

	// feeds
	".rss": model.CategoryFeeds, ".atom": model.CategoryFeeds,

	// config
	".yaml": model.CategoryConfig, ".yml": model.CategoryConfig, ".toml": model.CategoryConfig,
	".ini": model.CategoryConfig, ".conf": model.CategoryConfig, ".webmanifest": model.CategoryConfig,
	".env": model.CategoryConfig,
}

// mimeCategories maps exact media types the prefix rules do not cover.
var mimeCategories = map[string]model.ResourceCategory{
	"application/pdf":               model.CategoryDocuments,
	"application/msword":            model.CategoryDocuments,
	"application/rtf":               model.CategoryDocuments,
	"application/epub+zip":          model.CategoryDocuments,
	"text/plain":                    model.CategoryDocuments,
	"text/markdown":                 model.CategoryDocuments,
	"text/css":                      model.CategoryCode,
	"text/javascript":               model.CategoryCode,
	"application/javascript":        model.CategoryCode,
	"application/x-javascript":      model.CategoryCode,
	"application/wasm":              model.CategoryCode,
	"application/zip":               model.CategoryArchives,
	"application/gzip":              model.CategoryArchives,
	"application/x-gzip":            model.CategoryArchives,
	"application/x-tar":             model.CategoryArchives,
	"application/x-7z-compressed":   model.CategoryArchives,
	"application/x-rar-compressed":  model.CategoryArchives,
	"application/vnd.rar":           model.CategoryArchives,
	"application/json":              model.CategoryData,
	"application/ld+json":           model.CategoryData,
	"application/xml":               model.CategoryData,
	"text/xml":                      model.CategoryData,
	"text/csv":                      model.CategoryData,
	"application/rss+xml":           model.CategoryFeeds,
	"application/atom+xml":          model.CategoryFeeds,
	"application/manifest+json":     model.CategoryConfig,
	"application/yaml":              model.CategoryConfig,
	"application/x-yaml":            model.CategoryConfig,
	"application/toml":              model.CategoryConfig,
	"application/font-woff":         model.CategoryFonts,
	"application/vnd.ms-fontobject": model.CategoryFonts,
}

// Classify returns the resource category of rawURL, or false when the URL
// should be crawled as a page. The MIME type guessed from the extension is
// consulted first, then the extension table. URLs without a recognized
// extension are pages.
func Classify(rawURL string) (model.ResourceCategory, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return "", false
	}

	if mediaType := mime.TypeByExtension(ext); mediaType != "" {
		if c, ok := ClassifyMediaType(mediaType); ok {
			return c, true
		}
	}
	c, ok := extensionCategories[ext]
	return c, ok
}

// ClassifyMediaType maps a media type such as "image/png" to a category.
// HTML and unknown types report false.
func ClassifyMediaType(mediaType string) (model.ResourceCategory, bool) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return "", false
	}
	if c, ok := mimeCategories[mt]; ok {
		return c, true
	}

	major, minor, _ := strings.Cut(mt, "/")
	switch {
	case major == "image":
		return model.CategoryImages, true
	case major == "video", major == "audio":
		return model.CategoryMedia, true
	case major == "font":
		return model.CategoryFonts, true
	case strings.HasPrefix(minor, "vnd.openxmlformats-officedocument."),
		strings.HasPrefix(minor, "vnd.ms-"),
		strings.HasPrefix(minor, "vnd.oasis.opendocument."):
		return model.CategoryDocuments, true
	}
	return "", false
}
