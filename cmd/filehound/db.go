package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huntlab/filehound/pkg/store"
)

var (
	dbInit         bool
	dbDrop         bool
	dbAddWorkspace string
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Administer the collection database",
	RunE:  runDB,
}

func init() {
	dbCmd.Flags().BoolVar(&dbInit, "init", false, "Create the database schema")
	dbCmd.Flags().BoolVar(&dbDrop, "drop", false, "Drop all tables")
	dbCmd.Flags().StringVarP(&dbAddWorkspace, "add", "a", "", "Add a workspace")
}

func runDB(cmd *cobra.Command, args []string) error {
	if !dbInit && !dbDrop && dbAddWorkspace == "" {
		return fmt.Errorf("%w: one of --init, --drop or -a is required", errUsage)
	}

	st, err := store.Open(database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if dbDrop {
		if err := st.Drop(ctx); err != nil {
			return err
		}
		fmt.Println("schema dropped")
	}
	if dbInit {
		if err := st.Init(ctx); err != nil {
			return err
		}
		fmt.Println("schema created")
	}
	if dbAddWorkspace != "" {
		if err := st.Init(ctx); err != nil {
			return err
		}
		ws, err := st.AddWorkspace(ctx, dbAddWorkspace)
		if err != nil {
			return err
		}
		fmt.Printf("workspace %s (id %d)\n", ws.Name, ws.ID)
	}
	return nil
}
