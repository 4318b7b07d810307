package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for afcplot.

To load completions:

Bash:
  $ source <(afcplot completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ afcplot completion bash > /etc/bash_completion.d/afcplot
  # macOS:
  $ afcplot completion bash > $(brew --prefix)/etc/bash_completion.d/afcplot

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ afcplot completion zsh > "${fpath[1]}/_afcplot"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ afcplot completion fish | source

  # To load completions for each session, execute once:
  $ afcplot completion fish > ~/.config/fish/completions/afcplot.fish

PowerShell:
  PS> afcplot completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> afcplot completion powershell > afcplot.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(c.out)
			case "zsh":
				return cmd.Root().GenZshCompletion(c.out)
			case "fish":
				return cmd.Root().GenFishCompletion(c.out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(c.out)
			}
			return nil
		},
	}

	return cmd
}
