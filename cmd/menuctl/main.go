// Command menuctl drives the menu_translator API from a terminal: it submits a
// photo for in-place translation or food labeling, or uploads it as an
// asynchronous translation task and follows the task until it finishes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"menu_translator/client"
	"menu_translator/client/poller"
	"menu_translator/translation_task"
	"menu_translator/vision_agent"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	server   string
	token    string
	toLang   string
	fromLang string
	out      string
	userID   string
	timeout  time.Duration
	interval time.Duration
	maxPolls int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("menuctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.server, "server", envOr("MENU_SERVER", "http://localhost:8081"), "menu_translator base URL")
	fs.StringVar(&opts.token, "token", os.Getenv("MENU_TOKEN"), "bearer token")
	fs.StringVar(&opts.toLang, "to", "English", "target language (name or code)")
	fs.StringVar(&opts.fromLang, "from", "", "source language, empty to auto-detect")
	fs.StringVar(&opts.out, "out", "", "where to write the result image")
	fs.StringVar(&opts.userID, "user", "", "user id sent with uploads when the server does not verify tokens")
	fs.DurationVar(&opts.timeout, "timeout", 3*time.Minute, "per-request timeout")
	fs.DurationVar(&opts.interval, "interval", poller.DefaultInterval, "task poll interval")
	fs.IntVar(&opts.maxPolls, "max-polls", poller.DefaultMaxPolls, "task poll ceiling")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: menuctl [flags] <translate|recognize|upload> <image>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}
	command, imagePath := fs.Arg(0), fs.Arg(1)
	if command != "translate" && command != "recognize" && command != "upload" {
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		fs.Usage()
		return exitUsage
	}
	if opts.token == "" {
		fmt.Fprintln(stderr, "a bearer token is required (-token or MENU_TOKEN)")
		return exitUsage
	}

	img, err := readImage(imagePath)
	if err != nil {
		fmt.Fprintf(stderr, "read image: %v\n", err)
		return exitFailure
	}

	api := client.NewAPIClient(opts.server, opts.token, opts.timeout)
	api.UserID = opts.userID

	switch command {
	case "translate":
		err = translate(ctx, api, img, imagePath, opts, stdout)
	case "recognize":
		err = recognize(ctx, api, img, imagePath, opts, stdout)
	case "upload":
		err = upload(ctx, api, img, opts, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s failed: %v\n", command, err)
		return exitFailure
	}
	return exitOK
}

func translate(ctx context.Context, api *client.APIClient, img client.ImageInput, imagePath string, opts options, stdout io.Writer) error {
	result, err := api.Translate(ctx, img, opts.toLang, opts.fromLang)
	if err != nil {
		return err
	}
	if result.TextResponse != "" {
		fmt.Fprintf(stdout, "model: %s\n", result.TextResponse)
	}
	return writeResult(result.ImageDataURL, imagePath, "translated", opts.out, stdout)
}

func recognize(ctx context.Context, api *client.APIClient, img client.ImageInput, imagePath string, opts options, stdout io.Writer) error {
	result, err := api.Recognize(ctx, img, opts.toLang)
	if err != nil {
		return err
	}
	if len(result.FoodList) == 0 {
		fmt.Fprintln(stdout, "no food names returned")
	}
	for _, name := range result.FoodList {
		fmt.Fprintf(stdout, "- %s\n", name)
	}
	return writeResult(result.ImageDataURL, imagePath, "labeled", opts.out, stdout)
}

func upload(ctx context.Context, api *client.APIClient, img client.ImageInput, opts options, stdout io.Writer) error {
	session := client.NewSession(api, opts.toLang, opts.fromLang)
	session.Poller().Interval = opts.interval
	session.Poller().MaxPolls = opts.maxPolls
	defer session.Exit()

	if err := session.Open(); err != nil {
		return err
	}
	updates, err := session.Submit(ctx, img)
	if err != nil {
		return err
	}

	var final poller.Update
	for u := range updates {
		fmt.Fprintf(stdout, "task %s: %s %d%%\n", u.Task.TaskID, u.Task.Status, u.Task.Progress)
		final = u
	}
	if !final.Done {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("polling stopped before the task finished")
	}
	if final.Err != nil {
		return final.Err
	}

	switch final.Task.Status {
	case translation_task.StatusCompleted:
		if final.Task.TranslatedFileURL == "" {
			fmt.Fprintln(stdout, "completed without a result URL")
			return nil
		}
		fmt.Fprintln(stdout, final.Task.TranslatedFileURL)
		return nil
	default:
		reason := final.Task.Error
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("task %s ended as %s: %s", final.Task.TaskID, final.Task.Status, reason)
	}
}

func readImage(path string) (client.ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.ImageInput{}, err
	}
	mimeType := vision_agent.DetectImageMIME(mime.TypeByExtension(filepath.Ext(path)), data)
	if !vision_agent.IsImageMIME(mimeType) {
		return client.ImageInput{}, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return client.ImageInput{Filename: filepath.Base(path), MIMEType: mimeType, Data: data}, nil
}

// writeResult 将 data URL 图片写入 out；未指定时写到原图旁边。
func writeResult(dataURL, imagePath, suffix, out string, stdout io.Writer) error {
	if dataURL == "" {
		return errors.New("server returned no image")
	}
	mimeType, raw, err := vision_agent.DecodeDataURL(dataURL)
	if err != nil {
		return fmt.Errorf("decode result image: %w", err)
	}
	if out == "" {
		base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
		out = base + "." + suffix + extensionFor(mimeType)
	}
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", out, len(raw))
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
