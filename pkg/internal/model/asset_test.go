package model_test

import (
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
)

var (
	imported = time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	shot     = time.Date(2021, 3, 14, 9, 26, 0, 0, time.UTC)
	curated  = time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
)

func TestBestDatePrecedence(t *testing.T) {
	cases := []struct {
		name  string
		asset model.Asset
		want  time.Time
	}{
		{"import only", model.Asset{ImportDate: imported}, imported},
		{"original beats import", model.Asset{ImportDate: imported, OriginalDate: &shot}, shot},
		{"user beats original", model.Asset{ImportDate: imported, OriginalDate: &shot, UserDate: &curated}, curated},
		{"user beats import", model.Asset{ImportDate: imported, UserDate: &curated}, curated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.asset.BestDate(); !got.Equal(tc.want) {
				t.Errorf("BestDate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPending(t *testing.T) {
	base := model.Asset{Key: "a", ImportDate: imported}
	if !base.Pending() {
		t.Error("asset without tags/caption/location should be pending")
	}

	tagged := base
	tagged.Tags = []string{"cat"}

	if tagged.Pending() {
		t.Error("tagged asset is not pending")
	}

	captioned := base
	captioned.Caption = "sunset"

	if captioned.Pending() {
		t.Error("captioned asset is not pending")
	}

	labelled := base
	labelled.Location = &model.Location{Label: "home"}

	if labelled.Pending() {
		t.Error("asset with location label is not pending")
	}

	// 只有 city/region 没有 label 仍然算待整理
	cityOnly := base
	cityOnly.Location = &model.Location{City: "Oslo"}

	if !cityOnly.Pending() {
		t.Error("asset with city but no label should be pending")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := model.NormalizeTags([]string{" Cat", "mouse", "CAT", "", "Mouse ", "outdoor"})

	want := []string{"Cat", "mouse", "outdoor"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeTags() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeTags()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHasAllTags(t *testing.T) {
	a := model.Asset{Tags: []string{"Cat", "Mouse", "outdoor"}}

	if !a.HasAllTags([]string{"cat", "MOUSE"}) {
		t.Error("superset match should hold case-insensitively")
	}

	if a.HasAllTags([]string{"cat", "dog"}) {
		t.Error("missing tag should fail the superset match")
	}
}
