package model

// ResourceCategory is the typed class of a non-page resource.
// A URL with a category is catalogued in the resource inventory and never
// crawled as a page.
type ResourceCategory string

const (
	// CategoryImages covers raster and vector images and icons.
	CategoryImages ResourceCategory = "images"
	// CategoryDocuments covers office documents, PDFs and plain text files.
	CategoryDocuments ResourceCategory = "documents"
	// CategoryMedia covers audio and video.
	CategoryMedia ResourceCategory = "media"
	// CategoryCode covers scripts and stylesheets.
	CategoryCode ResourceCategory = "code"
	// CategoryArchives covers compressed bundles.
	CategoryArchives ResourceCategory = "archives"
	// CategoryFonts covers web fonts.
	CategoryFonts ResourceCategory = "fonts"
	// CategoryData covers structured data files such as CSV or JSON.
	CategoryData ResourceCategory = "data"
	// CategoryFeeds covers RSS and Atom feeds.
	CategoryFeeds ResourceCategory = "feeds"
	// CategoryConfig covers configuration and manifest files.
	CategoryConfig ResourceCategory = "config"
)

// AllCategories lists every resource category in report order.
var AllCategories = []ResourceCategory{
	CategoryImages,
	CategoryDocuments,
	CategoryMedia,
	CategoryCode,
	CategoryArchives,
	CategoryFonts,
	CategoryData,
	CategoryFeeds,
	CategoryConfig,
}

// String returns the category name.
func (c ResourceCategory) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c ResourceCategory) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}
