package safety

import (
	"fmt"
	"strings"
)

// CriticalPhrase must be typed verbatim before touching a critical device
const CriticalPhrase = "I UNDERSTAND THE RISK"

// ConfirmationPhrase is what the operator has to type to proceed
func (a Assessment) ConfirmationPhrase() string {
	if a.RiskTier == RiskCritical {
		return CriticalPhrase
	}
	return a.Device
}

// Confirm checks operator input against the confirmation phrase
func (a Assessment) Confirm(input string) bool {
	return strings.TrimSpace(input) == a.ConfirmationPhrase()
}

// ConfirmationMessage renders the warning shown before operation runs on the device
func (a Assessment) ConfirmationMessage(operation string) string {
	var b strings.Builder
	switch a.RiskTier {
	case RiskCritical:
		fmt.Fprintf(&b, "CRITICAL WARNING\n\nYou are about to %s a SYSTEM DEVICE: %s\n", operation, a.Device)
		b.WriteString("This may render the computer UNBOOTABLE and destroy the operating system.\n")
	case RiskHigh:
		fmt.Fprintf(&b, "WARNING\n\nYou are about to %s %s, which holds user data:\n", operation, a.Device)
	default:
		fmt.Fprintf(&b, "You are about to %s %s.\n", operation, a.Device)
	}
	for _, m := range a.MountedPartitions {
		fmt.Fprintf(&b, "  %s mounted at %s\n", m.Device, m.Mountpoint)
	}
	b.WriteString("ALL DATA ON THIS DEVICE WILL BE PERMANENTLY LOST.\n\n")
	fmt.Fprintf(&b, "Type '%s' to continue: ", a.ConfirmationPhrase())
	return b.String()
}
