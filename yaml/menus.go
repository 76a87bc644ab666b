package yaml

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/fwojciec/siteclone"
	"gopkg.in/yaml.v3"
)

// DecodeMenus reads a reviewed menu structure, a list of groups with a
// trigger, an optional url and items. JSON input is accepted as well.
func DecodeMenus(r io.Reader) ([]siteclone.MenuGroup, error) {
	var menus []siteclone.MenuGroup
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&menus); err != nil && !errors.Is(err, io.EOF) {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid menus file: %v", err)
	}
	for i, m := range menus {
		if strings.TrimSpace(m.Trigger) == "" {
			return nil, siteclone.Errorf(siteclone.EINVALID, "menu %d: trigger required", i+1)
		}
		for j, item := range m.Items {
			if strings.TrimSpace(item.Name) == "" {
				return nil, siteclone.Errorf(siteclone.EINVALID, "menu %q item %d: name required", m.Trigger, j+1)
			}
		}
	}
	if menus == nil {
		menus = []siteclone.MenuGroup{}
	}
	return menus, nil
}

// LoadMenus reads the menus file at path.
func LoadMenus(path string) ([]siteclone.MenuGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeMenus(f)
}

// EncodeMenus writes menus in the format DecodeMenus reads.
func EncodeMenus(w io.Writer, menus []siteclone.MenuGroup) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(menus); err != nil {
		return err
	}
	return enc.Close()
}
