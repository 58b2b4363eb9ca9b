package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/elicit/internal/api"
	"github.com/kalambet/elicit/internal/interview"
	"github.com/kalambet/elicit/internal/storage"
)

func topicPath(id int64, topic, suffix string) string {
	return projectPath(id, "/topics/"+url.PathEscape(topic)+suffix)
}

// --- topic ---

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Edit topics of a project",
}

var topicEditCmd = &cobra.Command{
	Use:   "edit <id> <topic>",
	Short: "Rewrite the content of a topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		t, err := editTopic(cmd.Context(), client, id, args[1], content)
		if err != nil {
			return err
		}
		printSuccess("%s: %s", t.Number, t.Content)
		return nil
	},
}

func editTopic(ctx context.Context, c *apiClient, id int64, topic, content string) (storage.Topic, error) {
	resp, err := c.patch(ctx, topicPath(id, topic, ""), api.EditTopicRequest{Content: content})
	if err != nil {
		return storage.Topic{}, err
	}
	var t storage.Topic
	if err := decodeJSON(resp, &t); err != nil {
		return storage.Topic{}, err
	}
	return t, nil
}

func init() {
	topicEditCmd.Flags().String("content", "", "new topic content")
	topicEditCmd.MarkFlagRequired("content")
	topicCmd.AddCommand(topicEditCmd)
}

// --- slot ---

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Add or edit slots of a topic",
}

var slotAddCmd = &cobra.Command{
	Use:   "add <id> <topic>",
	Short: "Add a slot to a topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		necessary, _ := cmd.Flags().GetBool("necessary")
		req := api.AddSlotRequest{Key: key, Necessity: necessary}
		if cmd.Flags().Changed("value") {
			v, _ := cmd.Flags().GetString("value")
			req.Value = &v
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		sl, err := addSlot(cmd.Context(), client, id, args[1], req)
		if err != nil {
			return err
		}
		printSlot(os.Stdout, sl)
		return nil
	},
}

var slotSetCmd = &cobra.Command{
	Use:   "set <id> <topic> <slot>",
	Short: "Change the key, value or necessity of a slot",
	Long: `Change a slot of a topic. Only the flags given are applied; an empty
--value clears the slot.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var edit interview.SlotEdit
		if cmd.Flags().Changed("key") {
			k, _ := cmd.Flags().GetString("key")
			edit.Key = &k
		}
		if cmd.Flags().Changed("value") {
			v, _ := cmd.Flags().GetString("value")
			edit.Value = &v
		}
		if cmd.Flags().Changed("necessary") {
			n, _ := cmd.Flags().GetBool("necessary")
			edit.Necessity = &n
		}
		if edit == (interview.SlotEdit{}) {
			return fmt.Errorf("nothing to change: pass --key, --value or --necessary")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		sl, err := editSlot(cmd.Context(), client, id, args[1], args[2], edit)
		if err != nil {
			return err
		}
		printSlot(os.Stdout, sl)
		return nil
	},
}

func addSlot(ctx context.Context, c *apiClient, id int64, topic string, req api.AddSlotRequest) (storage.Slot, error) {
	resp, err := c.post(ctx, topicPath(id, topic, "/slots"), req)
	if err != nil {
		return storage.Slot{}, err
	}
	var sl storage.Slot
	if err := decodeJSON(resp, &sl); err != nil {
		return storage.Slot{}, err
	}
	return sl, nil
}

func editSlot(ctx context.Context, c *apiClient, id int64, topic, slot string, edit interview.SlotEdit) (storage.Slot, error) {
	resp, err := c.patch(ctx, topicPath(id, topic, "/slots/"+url.PathEscape(slot)), edit)
	if err != nil {
		return storage.Slot{}, err
	}
	var sl storage.Slot
	if err := decodeJSON(resp, &sl); err != nil {
		return storage.Slot{}, err
	}
	return sl, nil
}

func printSlot(w io.Writer, sl storage.Slot) {
	value := "-"
	if sl.Value != nil {
		value = *sl.Value
	}
	necessity := "optional"
	if sl.Necessity {
		necessity = "necessary"
	}
	fmt.Fprintf(w, "%s %s = %s (%s)\n", colorize(colorCyan, sl.Number), sl.Key, value, necessity)
}

func init() {
	for _, c := range []*cobra.Command{slotAddCmd, slotSetCmd} {
		c.Flags().String("key", "", "slot key")
		c.Flags().String("value", "", "slot value")
		c.Flags().Bool("necessary", false, "slot must be filled before the topic is complete")
	}
	slotAddCmd.MarkFlagRequired("key")
	slotCmd.AddCommand(slotAddCmd, slotSetCmd)
}
