package lake

import (
	"net/url"
	"path"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// Location is a bucket plus key prefix.
type Location struct {
	Bucket string
	Prefix string
}

// ParseLocation reads the s3://bucket/prefix shorthand; s3a:// is accepted
// for documents written for Spark-style tooling.
func ParseLocation(s string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return Location{}, etlerr.Wrapf(etlerr.Config, op, err, "location %q", s)
	}
	if u.Scheme != "s3" && u.Scheme != "s3a" {
		return Location{}, etlerr.New(etlerr.Config, op, "location %q: scheme must be s3 or s3a", s)
	}
	if u.Host == "" {
		return Location{}, etlerr.New(etlerr.Config, op, "location %q has no bucket", s)
	}
	return Location{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// ObjectKey is prefix/<source base name without extension>.parquet.
func ObjectKey(prefix, source string) string {
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		base = "output"
	}
	name := base + ".parquet"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
