package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/programme-lv/extserver/conf"
	"github.com/programme-lv/extserver/extsrv"
	"github.com/programme-lv/extserver/token"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var registryPath string
	var serverID string

	var rootCmd = &cobra.Command{
		Use:   "extcli",
		Short: "Operator CLI for external grading servers",
	}
	rootCmd.PersistentFlags().StringVarP(&registryPath, "config", "c", "servers.toml", "Server registry TOML file")
	rootCmd.PersistentFlags().StringVarP(&serverID, "server", "s", "", "Server id from the registry (required)")
	rootCmd.MarkPersistentFlagRequired("server")

	var checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Probe the server's availability",
		Run: func(cmd *cobra.Command, args []string) {
			client := newClient(registryPath, serverID)
			res, err := client.CheckConnection(context.Background())
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("status: %d, available: %v\n", res.Status, res.Ok())
		},
	}

	var filePath string
	var username string
	var courseID, assignID int
	var assignName string

	var uploadCmd = &cobra.Command{
		Use:   "upload",
		Short: "Upload a submission file",
		Run: func(cmd *cobra.Command, args []string) {
			client := newClient(registryPath, serverID)
			res, err := client.UploadFile(context.Background(),
				requestContext(username, courseID, assignID, assignName),
				extsrv.SubmissionFile{Path: filePath})
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("status: %d\n%s\n", res.Status, res.Transcript)
		},
	}
	uploadCmd.Flags().StringVarP(&filePath, "file", "f", "", "File to upload (required)")
	uploadCmd.MarkFlagRequired("file")

	var usernames string

	var gradesCmd = &cobra.Command{
		Use:   "grades",
		Short: "Fetch grades for a list of usernames",
		Run: func(cmd *cobra.Command, args []string) {
			client := newClient(registryPath, serverID)
			names := strings.Split(usernames, ",")
			grades, res, err := client.LoadGrades(context.Background(),
				requestContext(username, courseID, assignID, assignName), names)
			if err != nil {
				log.Fatal(err)
			}
			if !res.Ok() {
				fmt.Printf("grade fetch failed, status: %d\n", res.Status)
				return
			}
			for _, g := range grades {
				fmt.Printf("%s\t%.2f\t%s\n", g.Username, g.Grade, g.Comment)
			}
		},
	}
	gradesCmd.Flags().StringVarP(&usernames, "usernames", "u", "", "Comma-separated usernames (required)")
	gradesCmd.MarkFlagRequired("usernames")

	var student string

	var viewURLCmd = &cobra.Command{
		Use:   "view-url",
		Short: "Print a signed embedded-view URL",
		Run: func(cmd *cobra.Command, args []string) {
			client := newClient(registryPath, serverID)
			rc := requestContext(username, courseID, assignID, assignName)
			var viewURL string
			var err error
			if student != "" {
				viewURL, err = client.TeacherViewURL(rc, student)
			} else {
				viewURL, err = client.StudentViewURL(rc)
			}
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(viewURL)
		},
	}
	viewURLCmd.Flags().StringVar(&student, "student", "", "Build a teacher view of this student")

	for _, c := range []*cobra.Command{uploadCmd, gradesCmd, viewURLCmd} {
		c.Flags().StringVar(&username, "user", "", "Acting username (required)")
		c.Flags().IntVar(&courseID, "course", 0, "Course id (required)")
		c.Flags().IntVar(&assignID, "assignment", 0, "Assignment id (required)")
		c.Flags().StringVar(&assignName, "assignment-name", "", "Assignment name")
		c.MarkFlagRequired("user")
		c.MarkFlagRequired("course")
		c.MarkFlagRequired("assignment")
	}

	rootCmd.AddCommand(checkCmd, uploadCmd, gradesCmd, viewURLCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newClient(registryPath string, serverID string) *extsrv.Client {
	servers, err := conf.LoadServers(registryPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := conf.FindServer(servers, serverID)
	if err != nil {
		log.Fatal(err)
	}

	client, err := extsrv.NewClient(cfg, extsrv.WithTokenSource(newTokenProvider()))
	if err != nil {
		log.Fatal(err)
	}
	return client
}

// newTokenProvider uses the shared DynamoDB token cache when
// EXTSRV_TOKEN_TABLE is set and an in-process cache otherwise.
func newTokenProvider() *token.Provider {
	tableName := os.Getenv("EXTSRV_TOKEN_TABLE")
	if tableName == "" {
		return token.NewProvider(token.NewMemStore())
	}
	awsCfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config: %v", err)
	}
	ddbClient := dynamodb.NewFromConfig(awsCfg)
	return token.NewProvider(token.NewDdbStore(ddbClient, tableName))
}

func requestContext(username string, courseID, assignID int, assignName string) extsrv.RequestContext {
	return extsrv.RequestContext{
		CourseID:       courseID,
		AssignmentID:   assignID,
		AssignmentName: assignName,
		User:           extsrv.UserIdentity{Username: username},
	}
}
