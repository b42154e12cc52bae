package datacenter

import "fmt"

func errUnregisteredStrategy(name string) error {
	return fmt.Errorf("no strategy factory registered for %q", name)
}
