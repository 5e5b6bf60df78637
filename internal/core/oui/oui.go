// Package oui classifies detection events by the resolved vendor name of the
// transmitting radio.
//
// Vendors on the stable list ship firmware that probes with its burned-in
// address, so one address is one device. Everything else either randomizes
// its address per burst (modern Android, iOS) or is not a phone at all.
package oui

// RandomizedSentinel is the vendor label the capture firmware assigns to
// addresses it recognizes as locally administered randomized ones
const RandomizedSentinel = "Google_Random"

// stable holds vendor names (as truncated by the capture firmware) whose
// devices probe with stable addresses
var stable = map[string]struct{}{
	"SamsungE": {},
	"Htc":      {},
	"HTC":      {},
	"SonyMobi": {},
	"AsustekC": {},
	"ASUSTekC": {},
	"Guangdon": {},
	"XiaomiCo": {},
	"LgElectr": {},
	"LGElectr": {},
	"HuaweiTe": {},
	"Zte":      {},
	"zte":      {},
	"MurataMa": {},
	"vivoMobi": {},
	"HMDGloba": {},
	"Motorola": {},
	"RealmeCh": {},
	"Sony":     {},
}

// Stable reports whether vendor is on the stable-address list
func Stable(vendor string) bool {
	_, ok := stable[vendor]
	return ok
}

// Randomized reports whether a sighting belongs to the randomized population:
// an unresolved vendor or the randomized sentinel, on a probe-request frame
func Randomized(vendor string, frameType int16) bool {
	return frameType == 0 && (vendor == "" || vendor == RandomizedSentinel)
}
