package utils

import (
	"github.com/denisbrodbeck/machineid"
)

const hwidAppID = "ledgersync"

// HWID is an app scoped, hashed machine identifier. Empty when the platform exposes none.
var HWID = hardwareID()

func hardwareID() string {
	id, err := machineid.ProtectedID(hwidAppID)
	if err != nil {
		return ""
	}
	return id
}
