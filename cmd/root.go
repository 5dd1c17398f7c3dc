package cmd

import (
	"fmt"
	"os"

	"github.com/einstein-academy/course-registration/internal/config"
	"github.com/einstein-academy/course-registration/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "course-registration",
	Short: "Course Auto-Registration and Allocation Engine",
	Long: `A course auto-registration and allocation engine for university-style
enrollment, where many students compete for limited seats.

Seats are allocated by a multi-factor fit score (GPA, interest overlap,
application time, year fit, prerequisite completion) rather than pure
first-come-first-served. Applications funnel through per-course
waitlists; a periodic batch pass matches students to courses under a
configurable strategy, and dropouts promote the top waitlisted student.

Example usage:
  course-registration server --port 8080     # Start the registration API
  course-registration demo                   # Seeded walkthrough
  course-registration simulate --students 800 --capacity 200`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.course-registration.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".course-registration")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	config.Init()
}
