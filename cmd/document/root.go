package document

import (
	"github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	database docdb.IDatabase
	config   *common.ClientConfig

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:                "doc",
		Short:              "Perform document store operations",
		PersistentPreRunE:  setupDatabase,
		PersistentPostRunE: closeDatabase,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the document commands
	util.SetupClientFlags(DocumentCommands)

	DocumentCommands.PersistentFlags().String("output", "json", util.WrapString("The output format of documents (json, yaml)"))

	// Add subcommands
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(getAllCmd)
	DocumentCommands.AddCommand(addCmd)
	DocumentCommands.AddCommand(setCmd)
	DocumentCommands.AddCommand(delCmd)
	DocumentCommands.AddCommand(rekeyCmd)
}

// setupDatabase opens the configured document store
func setupDatabase(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	config, err = util.GetClientConfig()
	if err != nil {
		return err
	}

	database, err = util.OpenDatabase(config)
	return err
}

func closeDatabase(_ *cobra.Command, _ []string) error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// newStore binds the CRUD operations to a collection, named after the collection
func newStore(collection string) store.IStore {
	return store.NewStore(database.Collection(collection), store.Options{
		Name:     collection,
		LogLevel: util.GetLogLevel(config),
	})
}

// output prints a result in the configured output format
func output(cmd *cobra.Command, v any) error {
	return util.WriteOutput(cmd.OutOrStdout(), viper.GetString("output"), v)
}
