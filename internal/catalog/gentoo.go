package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Gentoo publishes its cloud-init image under timestamped names that change
// with every autobuild, so it cannot live in the static catalog. The finder
// below locates a current URL that an operator can paste into a catalog file.
const (
	GentooBaseURL      = "https://distfiles.gentoo.org/releases/amd64/autobuilds/current-di-amd64-cloudinit/"
	gentooFilePrefix   = "di-amd64-cloudinit-"
	gentooFileSuffix   = ".qcow2"
	gentooLookbackDays = 14
)

var (
	gentooSymlinks   = []string{"latest.qcow2", "di-amd64-cloudinit-latest.qcow2", "di-amd64-cloudinit.qcow2"}
	gentooBuildTimes = []string{"140056Z", "140000Z", "120000Z", "080000Z", "000000Z"}
)

// ErrGentooNotFound is returned when no candidate URL answers.
var ErrGentooNotFound = errors.New("no working Gentoo cloud-init image URL found")

// GentooFinder searches for the current Gentoo cloud-init image.
type GentooFinder struct {
	// Probe reports whether a URL is downloadable.
	Probe func(ctx context.Context, url string) bool
	// Now returns the reference date for the dated search.
	Now func() time.Time
	// BaseURL overrides GentooBaseURL.
	BaseURL string
	// OnTry is called with every candidate before it is probed.
	OnTry func(url string)
}

// Candidates lists every URL the finder would try, in order: the symlink
// names first, then dated builds from today back gentooLookbackDays days.
func (f *GentooFinder) Candidates() []string {
	base := f.BaseURL
	if base == "" {
		base = GentooBaseURL
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	var urls []string
	for _, name := range gentooSymlinks {
		urls = append(urls, base+name)
	}

	today := now()
	for daysAgo := 0; daysAgo <= gentooLookbackDays; daysAgo++ {
		date := today.AddDate(0, 0, -daysAgo).Format("20060102")
		for _, t := range gentooBuildTimes {
			urls = append(urls, fmt.Sprintf("%s%s%sT%s%s", base, gentooFilePrefix, date, t, gentooFileSuffix))
		}
	}
	return urls
}

// Find returns the first candidate the probe accepts.
func (f *GentooFinder) Find(ctx context.Context) (string, error) {
	for _, url := range f.Candidates() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if f.OnTry != nil {
			f.OnTry(url)
		}
		if f.Probe(ctx, url) {
			return url, nil
		}
	}
	return "", ErrGentooNotFound
}

// GentooDate extracts the build date from a dated Gentoo image URL and
// formats it as YYYY-MM-DD. Symlink URLs carry no date and return an error.
func GentooDate(url string) (string, error) {
	idx := strings.Index(url, gentooFilePrefix)
	if idx < 0 || !strings.Contains(url, gentooFileSuffix) {
		return "", fmt.Errorf("URL does not follow the dated naming scheme")
	}

	stamp := url[idx+len(gentooFilePrefix):]
	stamp = strings.SplitN(stamp, gentooFileSuffix, 2)[0]
	if len(stamp) < 8 {
		return "", fmt.Errorf("timestamp %q is too short", stamp)
	}

	datePart := stamp[:8]
	if _, err := strconv.Atoi(datePart); err != nil {
		return "", fmt.Errorf("timestamp %q does not start with YYYYMMDD", stamp)
	}

	year, _ := strconv.Atoi(datePart[:4])
	month, _ := strconv.Atoi(datePart[4:6])
	day, _ := strconv.Atoi(datePart[6:8])
	if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid date components: %d-%02d-%02d", year, month, day)
	}

	return fmt.Sprintf("%d-%02d-%02d", year, month, day), nil
}

// GentooEntry renders a catalog fragment for a found Gentoo image.
func GentooEntry(url, date string) (string, error) {
	fragment := map[string]Distribution{
		"Gentoo Linux": {
			Tag:      "gentoo",
			Versions: []Version{{Name: date, URL: url}},
		},
	}

	data, err := json.MarshalIndent(fragment, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to render catalog entry: %w", err)
	}
	return string(data), nil
}
