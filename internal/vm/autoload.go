package vm

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceExt is the script file extension the PSR-4 loader resolves to.
const SourceExt = ".phl"

// LoadSource parses and compiles a source file into the running VM. The
// compile step is injected by the embedding binary to keep this package
// free of a compiler dependency.
var LoadSource func(vm *VM, path string) error

// tryAutoload runs the autoloader chain for an unresolved class name.
// Returns true when some loader defined the name. A loader that errors is
// skipped; the caller's "Class not found" throw covers the failure. The
// autoloading guard stops a loader from re-entering itself for the same
// name.
func (vm *VM) tryAutoload(name string) bool {
	name = strings.TrimPrefix(name, `\`)
	key := strings.ToLower(name)
	if len(vm.autoloaders) == 0 || vm.autoloading[key] {
		return false
	}
	vm.autoloading[key] = true
	defer delete(vm.autoloading, key)

	for _, loader := range vm.autoloaders {
		if err := loader(vm, name); err != nil {
			continue
		}
		if vm.defined(key) {
			return true
		}
	}
	return vm.defined(key)
}

func (vm *VM) defined(key string) bool {
	if _, ok := vm.classes[key]; ok {
		return true
	}
	if _, ok := vm.enums[key]; ok {
		return true
	}
	if _, ok := vm.interfaces[key]; ok {
		return true
	}
	return false
}

// PSR4Autoloader maps namespace prefixes to base directories and loads
// Prefix\Sub\Name from <dir>/Sub/Name.phl. Longest prefix wins. A class
// name outside every prefix is not an error; the next loader gets a turn.
func PSR4Autoloader(prefixes map[string]string) Autoloader {
	// Stable longest-first order so Vendor\Pkg\ shadows Vendor\.
	ordered := make([]string, 0, len(prefixes))
	for p := range prefixes {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})

	return func(vm *VM, class string) error {
		if LoadSource == nil {
			return nil
		}
		for _, prefix := range ordered {
			p := strings.TrimSuffix(prefix, `\`)
			var rest string
			switch {
			case p == "":
				rest = class
			case strings.HasPrefix(class, p+`\`):
				rest = class[len(p)+1:]
			default:
				continue
			}
			rel := filepath.FromSlash(strings.ReplaceAll(rest, `\`, "/")) + SourceExt
			path := filepath.Join(prefixes[prefix], rel)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			return LoadSource(vm, path)
		}
		return nil
	}
}

// DirAutoloader resolves bare class names against a single directory,
// trying the name as written and lowercased.
func DirAutoloader(dir string) Autoloader {
	return func(vm *VM, class string) error {
		if LoadSource == nil {
			return nil
		}
		for _, candidate := range []string{class, strings.ToLower(class)} {
			path := filepath.Join(dir, candidate+SourceExt)
			if _, err := os.Stat(path); err == nil {
				return LoadSource(vm, path)
			}
		}
		return nil
	}
}
