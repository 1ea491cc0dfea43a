package desktop

import (
	"flag"
	"os"
	"runtime"

	"github.com/gen2brain/beeep"
	"github.com/spf13/viper"

	"code-intelligence.com/fuzzgate/pkg/log"
)

// Notify sends a desktop notification when the program runs in a
// desktop environment. Notifications are skipped in CI, under go test
// and when the user disabled them, so the gate stays silent on build
// machines.
func Notify(title, body string) {
	if os.Getenv("CI") != "" ||
		viper.GetBool("no-notifications") ||
		flag.Lookup("test.v") != nil {
		return
	}

	if !hasDesktop() {
		return
	}

	err := beeep.Notify(title, body, "")
	if err != nil {
		// Notifications are not critical enough to surface this
		log.Debugf("unable to send desktop notification (%s): %v", title, err)
	}
}

func hasDesktop() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return true
	default:
		return os.Getenv("DISPLAY") != ""
	}
}
