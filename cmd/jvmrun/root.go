package main

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/daimatz/gojvm/pkg/compiler"
	"github.com/daimatz/gojvm/pkg/runtime"
)

// rootCmd is the system entry point (spec.md §6): "execute a named
// static method of a class, having first loaded the class and its
// dependencies." Grounded on
// other_examples/3281d29e_Consensys-go-corset__pkg-cmd-generate.go.go's
// cobra.Command{Run: ...} shape, including its --verbose → logrus
// DebugLevel toggle.
var rootCmd = &cobra.Command{
	Use:   "jvmrun [flags] class#method",
	Short: "Load a class and execute one of its static methods.",
	Long: `jvmrun loads a Java class file by name, resolves its supertype chain,
runs each class's <clinit> through the interpreter, then invokes the
requested static method and prints its result.`,
	Args: cobra.ExactArgs(1),
	RunE: runJvm,
}

func init() {
	rootCmd.Flags().StringSliceP("classpath", "c", []string{"."}, "directories to search for user class files")
	rootCmd.Flags().String("jmod", "", "path to a java.base.jmod file (falls back to $JAVA_BASE_JMOD, $JAVA_HOME, then a glob under /usr/lib/jvm)")
	rootCmd.Flags().Int("stack-size", 1<<20, "operand-stack capacity, in slots (a long or double takes two)")
	rootCmd.Flags().Bool("compile", false, "ahead-of-demand compile every method loaded so far (the class and its supertypes) before executing")
	rootCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
}

func runJvm(cmd *cobra.Command, args []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(log.DebugLevel)
	}

	target := args[0]
	className, methodName, ok := strings.Cut(target, "#")
	if !ok {
		return fmt.Errorf("expected class#method, got %q", target)
	}

	classpath, _ := cmd.Flags().GetStringSlice("classpath")
	jmodFlag, _ := cmd.Flags().GetString("jmod")
	stackSize, _ := cmd.Flags().GetInt("stack-size")
	compileAhead, _ := cmd.Flags().GetBool("compile")

	provider := newClassProvider(classpath, findJmodPath(jmodFlag))
	interp := runtime.NewInterpreter(provider, stackSize)

	if _, err := interp.Library().Load(className); err != nil {
		log.WithError(err).Error("loading class failed")
		return err
	}

	if compileAhead {
		compileAllMethods(interp)
	}

	result, err := interp.Execute(className, methodName)
	if err != nil {
		log.WithError(err).Error("execution failed")
		return err
	}

	fmt.Println(result.String())
	return nil
}

// compileAllMethods implements the "ahead-of-demand" half of spec.md §1:
// rather than waiting for a method to be called before compiling it (the
// usual JIT tradeoff), every method ever registered in the method table
// is compiled before the requested entry point runs. A method whose
// bytecode falls outside the compiler's translatable subset
// (runtime.NotNativelyCompilable) simply keeps running interpreted —
// compile failures here are logged, not fatal, since interpretation is
// always a correct fallback per pkg/compiler's own design.
func compileAllMethods(interp *runtime.Interpreter) {
	mt := interp.MethodTable()
	for mi := 0; mi < mt.Count(); mi++ {
		idx := runtime.MethodIndex(mi)
		if err := compiler.Compile(mt, idx); err != nil {
			log.WithField("method", mt.Data(idx).Name).WithError(err).Debug("ahead-of-demand compile skipped")
		}
	}
}
