package document

import (
	"fmt"
	"github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [collection] [id]",
		Short: "Reads a single document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(config)
			defer cancel()

			record, err := newStore(args[0]).Get(ctx, args[1])
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("document %s/%s not found", args[0], args[1])
			}
			return output(cmd, record)
		},
	}
	getAllCmd = &cobra.Command{
		Use:   "getall [collection]",
		Short: "Reads every document of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(config)
			defer cancel()

			s := newStore(args[0])
			if asMap, _ := cmd.Flags().GetBool("as-map"); asMap {
				records, err := s.GetAllMap(ctx)
				if err != nil {
					return err
				}
				return output(cmd, records)
			}
			records, err := s.GetAll(ctx)
			if err != nil {
				return err
			}
			return output(cmd, records)
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [collection] [json]",
		Short: "Creates a document with a generated id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := util.ParsePayload(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := util.Context(config)
			defer cancel()

			record, err := newStore(args[0]).Add(ctx, payload)
			if err != nil {
				return err
			}
			return output(cmd, record)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [collection] [id] [json]",
		Short: "Creates or replaces a document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := util.ParsePayload(args[2])
			if err != nil {
				return err
			}
			ctx, cancel := util.Context(config)
			defer cancel()

			record, err := newStore(args[0]).Set(ctx, payload, args[1])
			if err != nil {
				return err
			}
			return output(cmd, record)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [collection] [id]",
		Short: "Deletes a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(config)
			defer cancel()

			if err := newStore(args[0]).Delete(ctx, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted successfully")
			return nil
		},
	}
	rekeyCmd = &cobra.Command{
		Use:   "rekey [collection] [id] [new-id]",
		Short: "Moves a document to a new id",
		Long: `Moves a document to a new id by copying it and deleting the original.
Without --atomic the copy and the delete are independent writes: if the delete fails, both documents exist.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context(config)
			defer cancel()

			s := newStore(args[0])
			atomic, _ := cmd.Flags().GetBool("atomic")
			if !atomic {
				record, err := s.Rekey(ctx, args[1], args[2])
				if err != nil {
					return err
				}
				return output(cmd, record)
			}

			logger := common.NewLogger(s.Name(), util.GetLogLevel(config), cmd.ErrOrStderr())
			record, err := store.RekeyAtomic(ctx, s.Collection().Doc(args[1]), args[2], database.Batch(),
				store.WithName(s.Name()), store.WithLogger(logger))
			if err != nil {
				return err
			}
			return output(cmd, record)
		},
	}
)

func init() {
	getAllCmd.Flags().Bool("as-map", false, util.WrapString("Print the documents as a map keyed by id instead of a list ordered by id"))
	rekeyCmd.Flags().Bool("atomic", false, util.WrapString("Commit the copy and the delete in one batch"))
}
