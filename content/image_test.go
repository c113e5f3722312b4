package content

import (
	"testing"
)

func TestParseAssetRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Asset
		wantErr bool
	}{
		{
			name: "jpg",
			ref:  "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg",
			want: Asset{ID: "Tb9Ew8CXIwaY6R1kjMvI0uRR", Width: 2000, Height: 3000, Format: "jpg"},
		},
		{
			name: "id with dash",
			ref:  "image-abc-def-10x20-png",
			want: Asset{ID: "abc-def", Width: 10, Height: 20, Format: "png"},
		},
		{name: "file asset", ref: "file-abc-pdf", wantErr: true},
		{name: "bad dims", ref: "image-abc-10by20-png", wantErr: true},
		{name: "empty", ref: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssetRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAssetRef(%q) expected error", tt.ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAssetRef(%q) error: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("ParseAssetRef(%q) = %+v, want %+v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestImageURL(t *testing.T) {
	b := NewImageURLBuilder(Config{ProjectID: "proj", Dataset: "production"})
	img := Image{Asset: Reference{Ref: "image-abc123-1200x800-jpg"}}

	if got, want := b.ImageURL(img), "https://cdn.sanity.io/images/proj/production/abc123-1200x800.jpg"; got != want {
		t.Errorf("ImageURL = %q, want %q", got, want)
	}
	got := b.ImageURL(img, Width(640), AutoFormat())
	if want := "https://cdn.sanity.io/images/proj/production/abc123-1200x800.jpg?auto=format&w=640"; got != want {
		t.Errorf("ImageURL with opts = %q, want %q", got, want)
	}
}

func TestImageURLEmptyOrMalformed(t *testing.T) {
	b := NewImageURLBuilder(Config{ProjectID: "proj", Dataset: "production"})
	if got := b.ImageURL(Image{}); got != "" {
		t.Errorf("empty ref = %q, want empty", got)
	}
	if got := b.ImageURL(Image{Asset: Reference{Ref: "garbage"}}); got != "" {
		t.Errorf("malformed ref = %q, want empty", got)
	}
}
