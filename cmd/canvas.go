package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"orbit/canvas"
	"orbit/client"
	"orbit/core"
	"orbit/prefs"
)

const (
	screenWidth  = 1920
	screenHeight = 1080
	// maxPages stops loadAll against a server that never returns an empty page.
	maxPages = 1000
)

// openCanvas starts a headless canvas session for the configured user
// against the item API.
func openCanvas(ctx context.Context, errOut io.Writer) (*canvas.Canvas, error) {
	userID := strings.TrimSpace(cfg.Client.UserID)
	if userID == "" {
		return nil, errors.New("no user: set ORBIT_USER_ID or pass --user")
	}

	var widths canvas.WidthStore = prefs.NewMemory()
	if cfg.Client.PrefsPath != "" {
		widths = prefs.NewFile(cfg.Client.PrefsPath)
	}
	container := canvas.NewVirtualContainer(canvas.Rect{W: screenWidth, H: screenHeight}, canvas.Size{})
	c := canvas.New(container, client.New(cfg.Client.APIURL, cfg.Client.Token), canvas.Options{
		PageSize: cfg.Client.PageSize,
		Widths:   widths,
		Notifier: canvas.NotifierFunc(func(n canvas.Notification) {
			fmt.Fprintf(errOut, "%s: %s\n", n.Level, n.Message)
		}),
	})
	if err := c.SetUser(ctx, userID); err != nil {
		return nil, err
	}
	return c, nil
}

func loadAll(ctx context.Context, c *canvas.Canvas) error {
	for i := 0; i < maxPages && c.Collection().HasMore(); i++ {
		if err := c.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

// openLoaded opens the canvas and pages in every item.
func openLoaded(cmd *cobra.Command) (*canvas.Canvas, error) {
	c, err := openCanvas(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if err := loadAll(cmd.Context(), c); err != nil {
		return nil, err
	}
	return c, nil
}

func parseCoords(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y %q", ys)
	}
	return x, y, nil
}

// cardFlags are the payload fields settable from the command line.
type cardFlags struct {
	title, content, transcription string
	dueDate, dueTime              string
	priority, repeat              string
	completed                     bool
}

func (f *cardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Card title")
	cmd.Flags().StringVar(&f.content, "content", "", "Note content")
	cmd.Flags().StringVar(&f.transcription, "transcription", "", "Audio transcription")
	cmd.Flags().StringVar(&f.dueDate, "due-date", "", "Task due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dueTime, "due-time", "", "Task due time (HH:MM)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Task priority (low, medium, high)")
	cmd.Flags().StringVar(&f.repeat, "repeat", "", "Repeat the task daily (yes, no)")
	cmd.Flags().BoolVar(&f.completed, "completed", false, "Mark the task completed")
}

// fields returns only the flags given on this invocation.
func (f *cardFlags) fields(cmd *cobra.Command) core.Fields {
	out := core.Fields{}
	set := func(name, key string, v any) {
		if flagChanged(cmd, name) {
			out[key] = v
		}
	}
	set("title", "title", f.title)
	set("content", "content", f.content)
	set("transcription", "transcription", f.transcription)
	set("due-date", "due_date", f.dueDate)
	set("due-time", "due_time", f.dueTime)
	set("priority", "priority", f.priority)
	set("repeat", "repeat", f.repeat)
	set("completed", "completed", f.completed)
	return out
}

var (
	mapCols   int
	mapRows   int
	mapCenter string

	lsJSON bool

	addFlags  cardFlags
	editFlags cardFlags
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Print the canvas minimap and the next open tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		if mapCenter != "" {
			xs, ys, ok := strings.Cut(mapCenter, ",")
			if !ok {
				return fmt.Errorf("--center must be x,y")
			}
			x, y, err := parseCoords(strings.TrimSpace(xs), strings.TrimSpace(ys))
			if err != nil {
				return err
			}
			c.NavigateTo(float64(x), float64(y))
		}

		out := cmd.OutOrStdout()
		size := c.Growth().Size()
		items := c.GetVisibleItems()
		fmt.Fprintf(out, "Canvas %.0fx%.0f, %d items\n", size.W, size.H, len(items))
		renderMinimap(out, c.MinimapFrame(), mapCols, mapRows)
		printTasks(out, c.Catchup())
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every item on the canvas",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		items := c.GetVisibleItems()
		if items == nil {
			items = []core.Item{}
		}
		if lsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		return printItems(cmd.OutOrStdout(), items)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <kind> <x> <y>",
	Short: "Place a new card (note, task, image, audio, scribble)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := canvas.ClassifyPalette(args[0])
		if err != nil {
			return err
		}
		x, y, err := parseCoords(args[1], args[2])
		if err != nil {
			return err
		}
		c, err := openCanvas(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		it, err := c.CreateItemAt(cmd.Context(), kind, x, y, addFlags.fields(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s at (%d, %d)\n", it.Kind, it.ID, it.X, it.Y)
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <id> <x> <y>",
	Short: "Move a card",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseCoords(args[1], args[2])
		if err != nil {
			return err
		}
		c, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		it, err := c.MoveItem(cmd.Context(), args[0], x, y)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to (%d, %d)\n", it.ID, it.X, it.Y)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		return c.RemoveItem(cmd.Context(), args[0])
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the fields of a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		edit := editFlags.fields(cmd)
		it, ok := c.Collection().Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", canvas.ErrUnknownItem, args[0])
		}
		if len(canvas.ChangedFields(it, edit)) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
			return nil
		}
		if _, err := c.EditItem(cmd.Context(), args[0], edit); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find cards by title, content or transcription",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCanvas(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		found, err := c.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No results.")
			return nil
		}
		return printItems(cmd.OutOrStdout(), found)
	},
}

var resetTasksCmd = &cobra.Command{
	Use:   "reset-tasks",
	Short: "Uncheck repeating tasks completed on an earlier day",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		n, err := c.ResetRepeatingTasks(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %d tasks\n", n)
		return err
	},
}

func init() {
	mapCmd.Flags().IntVar(&mapCols, "cols", 60, "Minimap width in characters")
	mapCmd.Flags().IntVar(&mapRows, "rows", 15, "Minimap height in characters")
	mapCmd.Flags().StringVar(&mapCenter, "center", "", "Center the viewport on x,y before drawing")
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "Output as JSON")
	addFlags.register(addCmd)
	editFlags.register(editCmd)

	rootCmd.AddCommand(mapCmd, lsCmd, addCmd, mvCmd, rmCmd, editCmd, searchCmd, resetTasksCmd)
}
