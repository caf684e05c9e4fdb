package diff

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports caller-contract violations in d: blank or repeated names,
// non-positive counts, Changed entries whose counts are equal, and nil
// entries. Compute never produces such a diff; Validate exists for diffs that
// arrive from storage or the network. Apply does not call it.
func Validate(d Diff) error {
	var errs []error
	seen := make(map[string]int, len(d))
	for i, e := range d {
		if e == nil {
			errs = append(errs, fmt.Errorf("entry %d: nil entry", i))
			continue
		}
		name := e.Key().Name
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("entry %d: card name is required", i))
		}
		if first, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("entry %d: duplicate card %q (first at entry %d)", i, name, first))
		} else {
			seen[name] = i
		}
		switch entry := e.(type) {
		case Added:
			if entry.After < 1 {
				errs = append(errs, fmt.Errorf("entry %d: added %q with count %d", i, name, entry.After))
			}
		case Removed:
			if entry.Before < 1 {
				errs = append(errs, fmt.Errorf("entry %d: removed %q with count %d", i, name, entry.Before))
			}
		case Changed:
			if entry.Before == entry.After {
				errs = append(errs, fmt.Errorf("entry %d: changed %q is a no-op (%d)", i, name, entry.After))
			}
			if entry.Before < 1 || entry.After < 1 {
				errs = append(errs, fmt.Errorf("entry %d: changed %q with count %d->%d", i, name, entry.Before, entry.After))
			}
		}
	}
	return errors.Join(errs...)
}
