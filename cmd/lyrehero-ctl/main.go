package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lyrehero/lyrehero-engine/pkg/client"
	"github.com/lyrehero/lyrehero-engine/pkg/verbose"
)

var (
	socketPath  = flag.String("socket", "/tmp/lyrehero.sock", "Unix socket path")
	command     = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'LOAD:twinkle-twinkle')")
	verboseFlag = flag.Bool("verbose", false, "Log the raw request sent and response received")
)

func main() {
	flag.Parse()
	verbose.SetEnabled(*verboseFlag)

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	if *command == "" {
		if len(flag.Args()) > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	verbose.Printf("connecting to %s", *socketPath)
	c := client.NewSocketClient(*socketPath)

	verbose.Printf("sending command %q", *command)
	response, err := c.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	verbose.Printf("received response: success=%v", response.Success)

	fmt.Printf("%s\n", response.String())
}

func showHelp() {
	fmt.Println("lyrehero-ctl - lyrehero-engined control tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/lyrehero.sock)")
	fmt.Println("  -cmd <command>    Command to send")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                         Get detection + tutor status")
	fmt.Println("  SONGS                          List songs in the library")
	fmt.Println("  LOAD:<song_id>                 Load a song and start the tutor")
	fmt.Println("  START                          Start audio capture without a song")
	fmt.Println("  STOP                           Stop the current session")
	fmt.Println("  SETGAIN:<gain>                 Set the input gain")
	fmt.Println("  CALIBRATE:noise:start|stop     Run the noise-floor calibration phase")
	fmt.Println("  CALIBRATE:note:start|stop      Run the note-clarity calibration phase")
	fmt.Println("  CONFIG:get:<key>               Read a config value")
	fmt.Println("  CONFIG:set:<key>:<value>       Write a config value")
	fmt.Println("  PING                           Test connection")
	fmt.Println("  QUIT                           Close the connection (daemon keeps running)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s LOAD:twinkle-twinkle\n", os.Args[0])
	fmt.Printf("  echo 'STATUS' | nc -U /tmp/lyrehero.sock\n")
}
