// Package yaml loads crawl policies and pre-approved menu structures from
// YAML files.
package yaml

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/fwojciec/siteclone"
	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk layout: an optional base profile followed by
// any CrawlPolicy fields, which override the profile. Durations are Go
// duration strings ("15s", "300ms").
type policyFile struct {
	Profile               string `yaml:"profile,omitempty"`
	siteclone.CrawlPolicy `yaml:",inline"`
}

// DecodePolicy reads a policy from r on top of base. The file's profile,
// when set, is applied to base before the file's own fields. Unknown keys
// and invalid values are EINVALID; unknown profiles are ENOTFOUND.
func DecodePolicy(r io.Reader, base siteclone.CrawlPolicy) (siteclone.CrawlPolicy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return siteclone.CrawlPolicy{}, err
	}

	var head struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return siteclone.CrawlPolicy{}, siteclone.Errorf(siteclone.EINVALID, "invalid policy file: %v", err)
	}
	policy, err := base.WithProfile(head.Profile)
	if err != nil {
		return siteclone.CrawlPolicy{}, err
	}

	file := policyFile{Profile: head.Profile, CrawlPolicy: policy}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return siteclone.CrawlPolicy{}, siteclone.Errorf(siteclone.EINVALID, "invalid policy file: %v", err)
	}

	if err := file.CrawlPolicy.Validate(); err != nil {
		return siteclone.CrawlPolicy{}, err
	}
	return file.CrawlPolicy, nil
}

// LoadPolicy reads the policy file at path on top of the default policy.
func LoadPolicy(path string) (siteclone.CrawlPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return siteclone.CrawlPolicy{}, err
	}
	defer f.Close()
	return DecodePolicy(f, siteclone.DefaultPolicy())
}

// EncodePolicy writes p in the format DecodePolicy reads.
func EncodePolicy(w io.Writer, p siteclone.CrawlPolicy) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(policyFile{CrawlPolicy: p}); err != nil {
		return err
	}
	return enc.Close()
}
