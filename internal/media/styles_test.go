package media

import (
	"testing"
	"time"
)

func TestLoadStyleTable(t *testing.T) {
	table, err := LoadStyleTable()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(table.Profiles) == 0 {
		t.Fatal("no profiles loaded")
	}
	if table.Default.Name != "explainer" {
		t.Fatalf("default profile = %q", table.Default.Name)
	}
	for _, p := range table.Profiles {
		if p.Visual == "" || p.Camera == "" || p.Lighting == "" {
			t.Fatalf("profile %q is missing direction fields", p.Name)
		}
	}
}

func TestSelectScoresKeywords(t *testing.T) {
	table, err := LoadStyleTable()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got := table.Select("Deploying software to a Kubernetes cluster with cloud APIs")
	if got.Name != "technology" {
		t.Fatalf("style = %q, want technology", got.Name)
	}
	got = table.Select("The patient received treatment after a clinical diagnosis")
	if got.Name != "medical" {
		t.Fatalf("style = %q, want medical", got.Name)
	}
}

func TestSelectDefaultsWhenNothingMatches(t *testing.T) {
	table, err := LoadStyleTable()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := table.Select("lorem ipsum dolor sit amet"); got.Name != "explainer" {
		t.Fatalf("style = %q, want explainer", got.Name)
	}
	if got := table.Select(""); got.Name != "explainer" {
		t.Fatalf("style = %q, want explainer", got.Name)
	}
}

func TestLinearBackoffClamps(t *testing.T) {
	delay := LinearBackoff(2*time.Second, 5*time.Second)
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, c := range cases {
		if got := delay(c.attempt); got != c.want {
			t.Fatalf("delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestTargetDuration(t *testing.T) {
	cases := []struct {
		scenes int
		want   int
	}{
		{0, 45},
		{1, 45},
		{3, 45},
		{4, 48},
		{6, 72},
		{10, 120},
		{50, 120},
	}
	for _, c := range cases {
		if got := TargetDuration(c.scenes); got != c.want {
			t.Fatalf("TargetDuration(%d) = %d, want %d", c.scenes, got, c.want)
		}
	}
}
