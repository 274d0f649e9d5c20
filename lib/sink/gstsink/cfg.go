package gstsink

import "fmt"

// AppSrcName is the name of the appsrc the stream is pushed into
const AppSrcName = "webrender"

// LaunchString builds the full pipeline description for caps
func LaunchString(launch, caps string) string {
	return fmt.Sprintf("appsrc name=%s caps=\"%s\" is-live=true format=time do-timestamp=true ! %s",
		AppSrcName, caps, launch)
}
