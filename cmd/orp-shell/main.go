// Command orp-shell is an interactive console for driving an ORP
// session over a serial link: create resources, push values, answer
// requests from the far end, and walk a file transfer through its
// control events by hand.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/octave-edge/orp-client/pkg/orp"
	"github.com/octave-edge/orp-client/pkg/session"
	"github.com/octave-edge/orp-client/pkg/transport"
)

var validBauds = map[int]bool{
	9600: true, 38400: true, 57600: true, 115200: true, 460800: true, 921600: true,
}

func main() {
	device := pflag.StringP("device", "d", "/dev/ttyUSB0", "Serial device path")
	baud := pflag.IntP("baud", "b", 115200, "Serial baud rate (9600, 38400, 57600, 115200, 460800, 921600)")
	pflag.Parse()

	if !validBauds[*baud] {
		fmt.Fprintf(os.Stderr, "orp-shell: unsupported baud rate %d\n", *baud)
		os.Exit(1)
	}

	log := logrus.New()

	link, err := transport.Open(*device, *baud)
	if err != nil {
		log.WithFields(logrus.Fields{"component": "transport", "err": err}).Fatal("failed to open serial device")
	}
	defer link.Close()

	stopKeepAlive := make(chan struct{})
	go transport.RunKeepAlive(link, stopKeepAlive)
	defer close(stopKeepAlive)

	sess := session.New(session.Config{
		Transport: link,
		Logger:    log,
		Dispatch: func(msg orp.Message) {
			fmt.Printf("\n<< %s seq=%d path=%q status=%v\n", msg.Type, msg.SequenceNum, msg.Path, msg.Status)
			fmt.Print("orp > ")
		},
	})

	stopRead := make(chan struct{})
	go readLoop(link, sess, log, stopRead)
	defer close(stopRead)

	runREPL(sess)
}

func readLoop(r interface{ Read([]byte) (int, error) }, sess *session.Session, log *logrus.Logger, stop <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := r.Read(buf)
		if err != nil {
			log.WithFields(logrus.Fields{"component": "transport", "err": err}).Warn("read error")
			continue
		}
		if n == 0 {
			continue
		}
		if err := sess.Pump(buf[:n]); err != nil {
			log.WithFields(logrus.Fields{"component": "session", "err": err}).Warn("pump error")
		}
	}
}

func runREPL(sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("orp > ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("orp > ")
			continue
		}
		if !dispatchCommand(sess, line) {
			fmt.Print("orp > ")
			continue
		}
		return
	}
}

// dispatchCommand executes one line of console input. It returns
// false to keep the REPL running, true when the shell should exit.
func dispatchCommand(sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "quit":
		return true

	case "help":
		printHelp()

	case "create":
		cmdCreate(sess, fields[1:])

	case "delete":
		cmdDelete(sess, fields[1:])

	case "add":
		cmdAddHandler(sess, fields[1:])

	case "push":
		cmdPush(sess, fields[1:])

	case "get":
		cmdGet(sess, fields[1:])

	case "example":
		cmdExample(sess, fields[1:])

	case "reply":
		cmdReply(sess, fields[1:])

	case "sync":
		cmdSync(sess, fields[1:])

	case "file":
		cmdFile(sess, fields[1:])

	case "debug":
		cmdDebug(sess, fields[1:])

	default:
		fmt.Printf("unknown command %q (try \"help\")\n", cmd)
	}

	fmt.Print("orp > ")
	return false
}

func printHelp() {
	fmt.Println(`commands:
  help
  quit
  create {input|output|sensor} {trig|bool|num|str|json} <path> [<units>]
  delete {resource|handler|sensor} <path>
  add handler <path>
  push {trig|bool|num|str|json} <path> <timestamp> [<data>]
  get <path>
  example json <path> [<data>]
  reply {handler|sensor|control|data} <status>
  sync {syn|synack|ack} [-v V] [-s S] [-r R] [-m M]
  file control {info|ready|pending|start|suspend|resume|abort} [<name-or-data> [-a <size>] [-f <local>]]
  file data <bytes>
  debug dump`)
}

var dataTypeNames = map[string]orp.DataType{
	"trig": orp.Trigger,
	"bool": orp.Boolean,
	"num":  orp.Numeric,
	"str":  orp.String,
	"json": orp.JSON,
}

func sendOrPrintErr(sess *session.Session, msg orp.Message) {
	msg.SequenceNum = sess.NextSequenceNum()
	if err := sess.Transmit(msg); err != nil {
		fmt.Printf("transmit failed: %v\n", err)
	}
}

func cmdCreate(sess *session.Session, args []string) {
	if len(args) < 3 {
		fmt.Println("usage: create {input|output|sensor} {trig|bool|num|str|json} <path> [<units>]")
		return
	}
	dt, ok := dataTypeNames[args[1]]
	if !ok {
		fmt.Printf("unknown data type %q\n", args[1])
		return
	}
	var t orp.PacketType
	switch args[0] {
	case "input":
		t = orp.InputCreateRqst
	case "output":
		t = orp.OutputCreateRqst
	case "sensor":
		t = orp.SensorCreateRqst
	default:
		fmt.Printf("unknown resource kind %q\n", args[0])
		return
	}
	msg := orp.NewMessage(t)
	msg.DataType = dt
	msg.Path = args[2]
	if len(args) > 3 {
		msg.Unit = args[3]
	}
	sendOrPrintErr(sess, msg)
}

func cmdDelete(sess *session.Session, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: delete {resource|handler|sensor} <path>")
		return
	}
	var t orp.PacketType
	switch args[0] {
	case "resource":
		t = orp.DeleteRqst
	case "handler":
		t = orp.HandlerRemoveRqst
	case "sensor":
		t = orp.SensorRemoveRqst
	default:
		fmt.Printf("unknown delete target %q\n", args[0])
		return
	}
	msg := orp.NewMessage(t)
	msg.Path = args[1]
	sendOrPrintErr(sess, msg)
}

func cmdAddHandler(sess *session.Session, args []string) {
	if len(args) < 2 || args[0] != "handler" {
		fmt.Println("usage: add handler <path>")
		return
	}
	msg := orp.NewMessage(orp.HandlerAddRqst)
	msg.Path = args[1]
	sendOrPrintErr(sess, msg)
}

func cmdPush(sess *session.Session, args []string) {
	if len(args) < 3 {
		fmt.Println("usage: push {trig|bool|num|str|json} <path> <timestamp> [<data>]")
		return
	}
	dt, ok := dataTypeNames[args[0]]
	if !ok {
		fmt.Printf("unknown data type %q\n", args[0])
		return
	}
	ts, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Printf("bad timestamp %q: %v\n", args[2], err)
		return
	}
	msg := orp.NewMessage(orp.PushRqst)
	msg.DataType = dt
	msg.Path = args[1]
	msg.Timestamp = ts
	if len(args) > 3 {
		msg.Data = []byte(strings.Join(args[3:], " "))
	}
	sendOrPrintErr(sess, msg)
}

func cmdGet(sess *session.Session, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: get <path>")
		return
	}
	msg := orp.NewMessage(orp.GetRqst)
	msg.Path = args[0]
	sendOrPrintErr(sess, msg)
}

func cmdExample(sess *session.Session, args []string) {
	if len(args) < 2 || args[0] != "json" {
		fmt.Println("usage: example json <path> [<data>]")
		return
	}
	msg := orp.NewMessage(orp.ExampleSetRqst)
	msg.DataType = orp.JSON
	msg.Path = args[1]
	if len(args) > 2 {
		msg.Data = []byte(strings.Join(args[2:], " "))
	}
	sendOrPrintErr(sess, msg)
}

var replyTypes = map[string]orp.PacketType{
	"handler": orp.HandlerCallResp,
	"sensor":  orp.SensorCallResp,
	"control": orp.FileControlResp,
	"data":    orp.FileDataResp,
}

func cmdReply(sess *session.Session, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: reply {handler|sensor|control|data} <status>")
		return
	}
	t, ok := replyTypes[args[0]]
	if !ok {
		fmt.Printf("unknown reply target %q\n", args[0])
		return
	}
	status, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("bad status %q: %v\n", args[1], err)
		return
	}
	msg := orp.NewMessage(t)
	msg.Status = orp.Status(status)
	sendOrPrintErr(sess, msg)
}

var syncTypes = map[string]orp.PacketType{
	"syn":     orp.SyncSyn,
	"synack":  orp.SyncSynack,
	"ack":     orp.SyncAck,
}

func cmdSync(sess *session.Session, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: sync {syn|synack|ack} [-v V] [-s S] [-r R] [-m M]")
		return
	}
	t, ok := syncTypes[args[0]]
	if !ok {
		fmt.Printf("unknown sync kind %q\n", args[0])
		return
	}
	msg := orp.NewMessage(t)
	msg.Version = orp.V1
	for i := 1; i+1 < len(args); i += 2 {
		val, err := strconv.Atoi(args[i+1])
		if err != nil {
			fmt.Printf("bad value for %s: %v\n", args[i], err)
			return
		}
		switch args[i] {
		case "-v":
			msg.Version = orp.Version(val)
		case "-s":
			msg.SentCount = val
		case "-r":
			msg.ReceivedCount = val
		case "-m":
			msg.MTU = val
		}
	}
	sendOrPrintErr(sess, msg)
}

var fileControlEvents = map[string]orp.Event{
	"info":    orp.EventInfo,
	"ready":   orp.EventReady,
	"pending": orp.EventPending,
	"start":   orp.EventStart,
	"suspend": orp.EventSuspend,
	"resume":  orp.EventResume,
	"abort":   orp.EventAbort,
}

func cmdFile(sess *session.Session, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: file {control|data} ...")
		return
	}
	switch args[0] {
	case "control":
		cmdFileControl(sess, args[1:])
	case "data":
		cmdFileData(sess, args[1:])
	default:
		fmt.Printf("unknown file subcommand %q\n", args[0])
	}
}

func cmdFileControl(sess *session.Session, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: file control {info|ready|pending|start|suspend|resume|abort} [<name-or-data> [-a <size>] [-f <local>]]")
		return
	}
	ev, ok := fileControlEvents[args[0]]
	if !ok {
		fmt.Printf("unknown file control event %q\n", args[0])
		return
	}
	msg := orp.NewMessage(orp.FileControlNtfy)
	msg.Event = ev

	var expectedSize int64
	var localPath string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-a":
			if i+1 < len(rest) {
				n, err := strconv.ParseInt(rest[i+1], 10, 64)
				if err == nil {
					expectedSize = n
				}
				i++
			}
		case "-f":
			if i+1 < len(rest) {
				localPath = rest[i+1]
				i++
			}
		default:
			msg.Path = rest[i]
		}
	}

	if ev == orp.EventStart && localPath != "" {
		if err := sess.FileTransfer().Setup(localPath, expectedSize, true); err != nil {
			fmt.Printf("file transfer setup failed: %v\n", err)
			return
		}
	}
	sendOrPrintErr(sess, msg)
}

func cmdFileData(sess *session.Session, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: file data <bytes>")
		return
	}
	msg := orp.NewMessage(orp.FileDataRqst)
	msg.Data = []byte(strings.Join(args, " "))
	sendOrPrintErr(sess, msg)
}

func cmdDebug(sess *session.Session, args []string) {
	if len(args) < 1 || args[0] != "dump" {
		fmt.Println("usage: debug dump")
		return
	}
	snap, err := sess.DiagnosticsSnapshot()
	if err != nil {
		fmt.Printf("diagnostics snapshot failed: %v\n", err)
		return
	}
	os.Stdout.Write(snap)
	fmt.Println()
}
