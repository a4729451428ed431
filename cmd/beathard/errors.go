package main

import (
	"context"
	"errors"

	"github.com/srg/beathard/internal/device"
)

var userMessages = []struct {
	err error
	msg string
}{
	{device.ErrAdapterUnavailable, "Bluetooth is unavailable. Check that the adapter is present and powered on"},
	{device.ErrAlreadyConnected, "the sensor is already connected"},
	{device.ErrNotConnected, "the sensor is not connected"},
	{device.ErrDeviceNotFound, "sensor not found. Make sure it is switched on and in range"},
	{device.ErrScanTimeout, "the scan timed out before anything was found"},
	{device.ErrScanFailed, "scanning failed"},
	{device.ErrConnectFailed, "could not connect to the sensor"},
	{device.ErrNoNotifyChannel, "the sensor exposes no notify characteristic; is it a BH- sensor?"},
	{device.ErrSubscribeFailed, "could not subscribe to sensor notifications"},
	{device.ErrStreamEnded, "the sensor stopped streaming"},
	{device.ErrStreamError, "the sensor stream failed"},
	{context.DeadlineExceeded, "the operation timed out"},
}

// FormatUserError turns err into a one-line message for the terminal. Known
// failures get a hint; the original text is kept for detail.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	prefix := ""
	var serr *device.SessionError
	if errors.As(err, &serr) {
		prefix = serr.Device + ": "
	}

	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			if detail := err.Error(); detail != m.err.Error() {
				return prefix + m.msg + " (" + detail + ")"
			}
			return prefix + m.msg
		}
	}
	return err.Error()
}
