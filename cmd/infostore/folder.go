package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	models "infostore/internal/domain/models/infostore"
	"infostore/internal/repository/postgres/infostore"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "folder commands",
}

func init() {
	folderCmd.AddCommand(createFolderCmd())
	folderCmd.AddCommand(getFolderCmd())
}

func createFolderCmd() *cobra.Command {
	var contextID, owner, parentID int64
	var name, module string

	var required = []string{"context", "owner", "name"}

	command := &cobra.Command{
		Use:   "create",
		Short: "create a folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			folder := &models.Folder{
				ContextID: contextID,
				Name:      name,
				Module:    module,
				CreatedBy: owner,
			}
			if parentID > 0 {
				folder.ParentID = &parentID
			}
			if err := infostore.NewFolderRepository(rt.repoConfig()).Create(cmd.Context(), folder); err != nil {
				return err
			}
			return printJSON(folder)
		},
	}
	command.Flags().Int64Var(&contextID, "context", 0, "context id")
	command.Flags().Int64Var(&owner, "owner", 0, "creating user id")
	command.Flags().Int64Var(&parentID, "parent", 0, "parent folder id")
	command.Flags().StringVar(&name, "name", "", "folder name")
	command.Flags().StringVar(&module, "module", models.ModuleInfostore, "folder module")
	for _, flag := range required {
		_ = command.MarkFlagRequired(flag)
	}

	return command
}

func getFolderCmd() *cobra.Command {
	var contextID, id int64

	command := &cobra.Command{
		Use:   "get",
		Short: "show a folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			folder, err := infostore.NewFolderRepository(rt.repoConfig()).GetByID(cmd.Context(), contextID, id)
			if err != nil {
				return err
			}
			return printJSON(folder)
		},
	}
	command.Flags().Int64Var(&contextID, "context", 0, "context id")
	command.Flags().Int64VarP(&id, "folder", "f", 0, "folder id")
	_ = command.MarkFlagRequired("context")
	_ = command.MarkFlagRequired("folder")

	return command
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
