package gateway

import "strings"

// safeCommands may be run directly with any arguments. They only read node
// state.
var safeCommands = map[string]bool{
	"status":     true,
	"balance":    true,
	"block":      true,
	"network":    true,
	"coins":      true,
	"getaddress": true,
	"history":    true,
	"mxid_info":  true,
	"get_maxima": true,
}

// safeExact are read-only forms of commands whose other actions write.
var safeExact = map[string]bool{
	"maxima action:info":      true,
	"maxcontacts action:list": true,
	"mds action:list":         true,
}

// IsSafeCommand reports whether command may be run through the direct
// command API. Anything that can move funds or reveal keys is refused;
// those only run from the chat flow.
func IsSafeCommand(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	if safeCommands[fields[0]] {
		return true
	}
	return safeExact[strings.Join(fields, " ")]
}
