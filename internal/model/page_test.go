package model

import (
	"strings"
	"testing"
)

func TestPageRecord_IsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"", false},
	}

	for _, tt := range tests {
		p := &PageRecord{ContentType: tt.contentType}
		if got := p.IsHTML(); got != tt.want {
			t.Errorf("IsHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

func TestPageRecord_FileCountAndOK(t *testing.T) {
	t.Parallel()

	p := &PageRecord{
		Files: map[ResourceCategory][]string{
			CategoryImages: {"https://x.test/a.png", "https://x.test/b.png"},
			CategoryCode:   {"https://x.test/app.js"},
		},
	}
	if got := p.FileCount(); got != 3 {
		t.Errorf("FileCount() = %d, want 3", got)
	}
	if !p.OK() {
		t.Error("record without error should be OK")
	}
	p.Error = "boom"
	if p.OK() {
		t.Error("record with error should not be OK")
	}
}

func TestForm_Key(t *testing.T) {
	t.Parallel()

	a := Form{Page: "https://x.test/", Action: "/login", Method: "post", Fields: []FormField{{Name: "user"}}}
	b := Form{Page: "https://x.test/", Action: "/login", Method: "POST", Fields: []FormField{{Name: "user"}}}
	c := Form{Page: "https://x.test/", Action: "/login", Method: "POST", Fields: []FormField{{Name: "email"}}}

	if a.Key() != b.Key() {
		t.Error("method case should not change form identity")
	}
	if a.Key() == c.Key() {
		t.Error("different fields should give different identity")
	}
}

func TestDecodeSiteMap(t *testing.T) {
	t.Parallel()

	input := `{
		"root_url": "https://x.test/",
		"domain": "x.test",
		"pages": {"https://x.test/": {"url": "https://x.test/", "status_code": 200,
			"files": {"images": ["https://x.test/a.png"]}}},
		"resources": {"images": ["https://x.test/a.png"]},
		"statistics": {"pages_crawled": 1}
	}`

	sm, err := DecodeSiteMap(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeSiteMap() error = %v", err)
	}
	if sm.Domain != "x.test" {
		t.Errorf("Domain = %q, want x.test", sm.Domain)
	}
	if sm.ResourceCount() != 1 {
		t.Errorf("ResourceCount() = %d, want 1", sm.ResourceCount())
	}
	foundOn := sm.FoundOn()
	if got := foundOn["https://x.test/a.png"]; len(got) != 1 || got[0] != "https://x.test/" {
		t.Errorf("FoundOn()[a.png] = %v, want [https://x.test/]", got)
	}
	if sm.Statistics.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1", sm.Statistics.PagesCrawled)
	}
}

func TestResourceCategory_Valid(t *testing.T) {
	t.Parallel()

	for _, c := range AllCategories {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if ResourceCategory("pages").Valid() {
		t.Error("pages should not be a resource category")
	}
}
