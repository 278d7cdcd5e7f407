package main

import "github.com/s1dny/bing-maps-tile-downloader/internal/cmd"

func main() {
	cmd.Execute()
}
