// Package log adds logging utilities.
package log

import (
	"strings"
	"time"

	"ohhell-server/internal/protocol"

	"github.com/sirupsen/logrus"
)

// SetLogger sets the default logger's level and format.
func SetLogger(level string) {
	customFormatter := new(logrus.TextFormatter)
	customFormatter.TimestampFormat = time.RFC3339
	customFormatter.FullTimestamp = true
	logrus.SetFormatter(customFormatter)
	switch strings.ToLower(level) {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func CommandFields(slot int, cmd protocol.Command) logrus.Fields {
	fields := logrus.Fields{
		"slot": slot,
		"code": cmd.Code.String(),
	}
	switch cmd.Code {
	case protocol.CodeName:
		fields["name"] = cmd.Name
	case protocol.CodeStart:
		fields["number"] = cmd.Number
	case protocol.CodeBid:
		fields["bid"] = cmd.Number
		fields["seat"] = cmd.Seat
	case protocol.CodeCard:
		fields["card"] = cmd.Number
		fields["seat"] = cmd.Seat
	}
	return fields
}

func SnapshotFields(snap protocol.Snapshot) logrus.Fields {
	fields := logrus.Fields{
		"players":    len(snap.Players),
		"board":      len(snap.Board),
		"hand":       len(snap.Hand),
		"inProgress": snap.Status.InProgress,
	}
	for _, k := range protocol.TriggerOrder {
		if v := snap.Triggers[k]; v > 0 {
			fields[string(k)] = v
		}
	}
	return fields
}
