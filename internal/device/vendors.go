package device

import "fmt"

// ODVA-assigned vendor IDs seen in the field. The table is static; unknown
// IDs are rendered numerically.
var vendorNames = map[uint16]string{
	1:    "Rockwell Automation/Allen-Bradley",
	5:    "Rockwell Automation/Reliance Electric",
	26:   "Festo SE & Co KG",
	40:   "WAGO Corporation",
	47:   "Omron Corporation",
	62:   "Danfoss",
	90:   "HMS Industrial Networks",
	108:  "Beckhoff Automation",
	128:  "Schneider Automation",
	170:  "Pepperl+Fuchs",
	243:  "Moxa Inc",
	252:  "Yaskawa Electric",
	258:  "SICK AG",
	283:  "Hilscher GmbH",
	287:  "Bosch Rexroth",
	356:  "FANUC Robotics America",
	579:  "Keyence Corporation",
	678:  "Cognex Corporation",
	805:  "Banner Engineering",
	888:  "Turck",
	1105: "Phoenix Contact",
}

// VendorName looks up the ODVA vendor name for an ID.
func VendorName(id uint16) string {
	if name, ok := vendorNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Vendor %d", id)
}
