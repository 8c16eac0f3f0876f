// Command cli is an interactive shell over a CommitDB instance: create
// databases and branches, stage a working commit, validate it, commit
// it, merge or rebase branches, and inspect the expanded read projection
// of an instance.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nickyhof/CommitDB"
	"github.com/nickyhof/CommitDB/branchops"
	"github.com/nickyhof/CommitDB/core"
	"github.com/nickyhof/CommitDB/expand"
	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/ps"
	"github.com/nickyhof/CommitDB/seed"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// CLI holds the REPL's state: the active database and branch context a
// bare command like ".wc create" or ".commit" implicitly operates on.
type CLI struct {
	session     *CommitDB.Session
	history     []string
	historyFile string
	database    string
	branch      string
}

func main() {
	baseDir := flag.String("baseDir", "", "Base directory for file-backed persistence (memory if empty)")
	gitUrl := flag.String("gitUrl", "", "Git URL to clone for file-backed persistence")
	importFile := flag.String("import", "", "Seed YAML file to load (non-interactive)")
	userName := flag.String("name", "CommitDB", "Identity name attributed to commits made in this session")
	userEmail := flag.String("email", "cli@commitdb.local", "Identity email attributed to commits made in this session")
	flag.Parse()

	printBanner()

	var persistence ps.Persistence
	var err error
	if *baseDir == "" {
		fmt.Printf("%sUsing memory persistence%s\n", SuccessColor, ResetColor)
		persistence, err = ps.NewMemoryPersistence()
	} else {
		fmt.Printf("%sUsing file persistence: %s%s\n", SuccessColor, *baseDir, ResetColor)
		var gitUrlPtr *string
		if *gitUrl != "" {
			gitUrlPtr = gitUrl
		}
		persistence, err = ps.NewFilePersistence(*baseDir, gitUrlPtr)
	}
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}

	inst := CommitDB.Open(&persistence)
	session := inst.Session(core.Identity{Name: *userName, Email: *userEmail})

	cli := &CLI{
		session:     session,
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}
	cli.loadHistory()

	if *importFile != "" {
		if err := cli.cmdImport([]string{*importFile}); err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func printBanner() {
	fmt.Println()
	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║  CommitDB v%-28s║%s\n", BoldColor, PromptColor, Version, ResetColor)
	fmt.Printf("%s%s║  Combinatorial configuration database  ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(cli.getPrompt())
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}
		input = strings.TrimRight(input, "\r\n")
		if strings.TrimSpace(input) == "" {
			continue
		}
		cli.addToHistory(input)
		cli.dispatch(input)
	}
}

func (cli *CLI) getPrompt() string {
	ctx := ""
	if cli.database != "" {
		ctx = " (" + cli.database
		if cli.branch != "" {
			ctx += "/" + cli.branch
		}
		ctx += ")"
	}
	return fmt.Sprintf("%scommitdb%s>%s ", PromptColor, ctx, ResetColor)
}

// dispatch parses one line into a command name and space-separated
// arguments and runs it. Every mutating command prints a single ✓/✗
// line; read commands print their own formatted output.
func (cli *CLI) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	var err error
	switch cmd {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		os.Exit(0)
	case ".help", ".h", ".?":
		cli.printHelp()
		return
	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")
		return
	case ".history":
		cli.printHistory()
		return
	case ".version":
		fmt.Printf("CommitDB version %s\n", Version)
		return

	case ".databases", ".dbs":
		err = cli.cmdDatabases()
	case ".database", ".db":
		err = cli.cmdCreateDatabase(args)
	case ".use":
		err = cli.cmdUse(args)
	case ".branches":
		err = cli.cmdBranches()
	case ".branch":
		err = cli.cmdBranch(args)
	case ".checkout":
		err = cli.cmdCheckout(args)

	case ".wc":
		err = cli.cmdWorkingCommit(args)
	case ".validate":
		err = cli.cmdValidate()
	case ".commit":
		err = cli.cmdCommit(args)
	case ".abort":
		err = cli.cmdAbort(args)

	case ".merge":
		err = cli.cmdMerge(args)
	case ".resolve":
		err = cli.cmdResolve(args)
	case ".rebase":
		err = cli.cmdRebase(args)

	case ".instances":
		err = cli.cmdInstances()
	case ".expand":
		err = cli.cmdExpand(args)
	case ".import":
		err = cli.cmdImport(args)

	default:
		fmt.Printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, fields[0], ResetColor)
		return
	}

	if err != nil {
		fmt.Printf("%s✗ %v%s\n", ErrorColor, err, ResetColor)
	}
}

func (cli *CLI) printHelp() {
	fmt.Println()
	fmt.Printf("%s%sDatabases & branches:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .databases                         list databases")
	fmt.Println("  .database <name> [description...]  create a database (and its default branch)")
	fmt.Println("  .use <database>                     set the current database context")
	fmt.Println("  .branches                           list branches in the current database")
	fmt.Println("  .branch <name> [from-branch]         create a branch")
	fmt.Println("  .checkout <branch>                  set the current branch context")
	fmt.Println()
	fmt.Printf("%s%sWorking commit:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .wc status                          show the active working commit")
	fmt.Println("  .wc create                           open a working commit on the current branch")
	fmt.Println("  .wc add-class <id> <name>            add an empty class to the staged schema")
	fmt.Println("  .wc add-prop <classId> <id> <name> <String|Number|Boolean|Object|Array|StringList> [required]")
	fmt.Println("  .wc add-rel <classId> <id> <name> <targetClassId> <exactly|at_least|at_most|optional|any|all> [n]")
	fmt.Println("  .wc add-instance <id> <classId>      add an instance to the staged data")
	fmt.Println("  .wc set-prop <instanceId> <prop> <jsonValue>")
	fmt.Println("  .validate                            validate the working commit")
	fmt.Println("  .commit <message...>                 commit the working commit")
	fmt.Println("  .abort <workingCommitId>             discard a working commit")
	fmt.Println()
	fmt.Printf("%s%sMerge & rebase:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .merge <source> <target>             three-way merge source into target")
	fmt.Println("  .resolve <wcId> <index> <take_left|take_right|take_base>")
	fmt.Println("  .rebase <feature> <target> [force]   rebase feature onto target")
	fmt.Println()
	fmt.Printf("%s%sReads:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .instances                           list instances on the current branch")
	fmt.Println("  .expand <instanceId>                 show the expanded read projection")
	fmt.Println("  .import <seed.yaml>                  load classes/instances from a seed file")
	fmt.Println()
	fmt.Printf("%s%sShell:%s .help  .history  .clear  .version  .quit\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
}

// --- databases & branches ---

func (cli *CLI) cmdDatabases() error {
	dbs, err := cli.session.Store().ListDatabases()
	if err != nil {
		return err
	}
	if len(dbs) == 0 {
		fmt.Println("(no databases)")
		return nil
	}
	for _, db := range dbs {
		fmt.Printf("  %-20s default branch: %s\n", db.Name, db.DefaultBranchName)
	}
	return nil
}

func (cli *CLI) cmdCreateDatabase(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: .database <name> [description...]")
	}
	name := args[0]
	var desc *string
	if len(args) > 1 {
		d := strings.Join(args[1:], " ")
		desc = &d
	}
	db, err := cli.session.Store().CreateDatabase(model.Database{
		Name:              name,
		Description:       desc,
		DefaultBranchName: "main",
	})
	if err != nil {
		return err
	}
	if _, err := cli.session.Store().CreateBranch(model.Branch{
		DatabaseId: db.Id,
		Name:       db.DefaultBranchName,
		Status:     model.BranchActive,
	}); err != nil {
		return err
	}
	cli.database = db.Id
	cli.branch = db.DefaultBranchName
	fmt.Printf("%s✓ created database %s (id %s), branch %s%s\n", SuccessColor, name, db.Id, db.DefaultBranchName, ResetColor)
	return nil
}

func (cli *CLI) cmdUse(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: .use <database-id-or-name>")
	}
	db, err := cli.resolveDatabase(args[0])
	if err != nil {
		return err
	}
	cli.database = db.Id
	cli.branch = db.DefaultBranchName
	fmt.Printf("%s✓ using database %s%s\n", SuccessColor, db.Name, ResetColor)
	return nil
}

// resolveDatabase accepts either a database id or a database name.
func (cli *CLI) resolveDatabase(ref string) (*model.Database, error) {
	if db, err := cli.session.Store().GetDatabase(ref); err == nil && db != nil {
		return db, nil
	}
	dbs, err := cli.session.Store().ListDatabases()
	if err != nil {
		return nil, err
	}
	for i := range dbs {
		if dbs[i].Name == ref {
			return &dbs[i], nil
		}
	}
	return nil, fmt.Errorf("database not found: %s", ref)
}

func (cli *CLI) requireDatabase() error {
	if cli.database == "" {
		return fmt.Errorf("no database selected; use .use <database> first")
	}
	return nil
}

func (cli *CLI) requireBranch() error {
	if err := cli.requireDatabase(); err != nil {
		return err
	}
	if cli.branch == "" {
		return fmt.Errorf("no branch selected; use .checkout <branch> first")
	}
	return nil
}

func (cli *CLI) cmdBranches() error {
	if err := cli.requireDatabase(); err != nil {
		return err
	}
	branches, err := cli.session.Store().ListBranches(cli.database)
	if err != nil {
		return err
	}
	if len(branches) == 0 {
		fmt.Println("(no branches)")
		return nil
	}
	for _, b := range branches {
		marker := " "
		if b.Name == cli.branch {
			marker = "*"
		}
		fmt.Printf("%s %-20s %-10s %s\n", marker, b.Name, b.Status, b.CurrentCommitHash)
	}
	return nil
}

func (cli *CLI) cmdBranch(args []string) error {
	if err := cli.requireDatabase(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: .branch <name> [from-branch]")
	}
	name := args[0]
	fromName := cli.branch
	if len(args) > 1 {
		fromName = args[1]
	}

	branch := model.Branch{DatabaseId: cli.database, Name: name, Status: model.BranchActive}
	if fromName != "" {
		from, err := cli.session.Store().GetBranch(cli.database, fromName)
		if err != nil {
			return err
		}
		if from == nil {
			return fmt.Errorf("parent branch not found: %s", fromName)
		}
		branch.CurrentCommitHash = from.CurrentCommitHash
		branch.ParentBranchName = &fromName
	}

	if _, err := cli.session.Store().CreateBranch(branch); err != nil {
		return err
	}
	fmt.Printf("%s✓ created branch %s from %s%s\n", SuccessColor, name, fromName, ResetColor)
	return nil
}

func (cli *CLI) cmdCheckout(args []string) error {
	if err := cli.requireDatabase(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: .checkout <branch>")
	}
	b, err := cli.session.Store().GetBranch(cli.database, args[0])
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("branch not found: %s", args[0])
	}
	cli.branch = b.Name
	fmt.Printf("%s✓ on branch %s%s\n", SuccessColor, b.Name, ResetColor)
	return nil
}

// --- working commit ---

func (cli *CLI) cmdWorkingCommit(args []string) error {
	if err := cli.requireBranch(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: .wc <status|create|add-class|add-prop|add-rel|add-instance|set-prop> ...")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "status":
		return cli.wcStatus()
	case "create":
		return cli.wcCreate()
	case "add-class":
		return cli.wcAddClass(rest)
	case "add-prop":
		return cli.wcAddProp(rest)
	case "add-rel":
		return cli.wcAddRel(rest)
	case "add-instance":
		return cli.wcAddInstance(rest)
	case "set-prop":
		return cli.wcSetProp(rest)
	default:
		return fmt.Errorf("unknown .wc subcommand: %s", sub)
	}
}

func (cli *CLI) activeWorkingCommit() (*model.WorkingCommit, error) {
	wc, err := cli.session.Store().GetActiveWorkingCommitForBranch(cli.database, cli.branch)
	if err != nil {
		return nil, err
	}
	if wc == nil {
		return nil, fmt.Errorf("no active working commit on %s; run .wc create first", cli.branch)
	}
	return wc, nil
}

func (cli *CLI) wcStatus() error {
	wc, err := cli.session.Store().GetActiveWorkingCommitForBranch(cli.database, cli.branch)
	if err != nil {
		return err
	}
	if wc == nil {
		fmt.Println("(no active working commit)")
		return nil
	}
	fmt.Printf("working commit %s  status=%s  based_on=%s\n", wc.Id, wc.Status, wc.BasedOnHash)
	fmt.Printf("  %d classes, %d instances\n", len(wc.SchemaData.Classes), len(wc.InstancesData))
	if wc.MergeStateData != nil {
		fmt.Printf("  merging %s -> %s: %d/%d conflicts resolved\n",
			wc.MergeStateData.SourceBranch, wc.MergeStateData.TargetBranch,
			len(wc.MergeStateData.Resolutions), len(wc.MergeStateData.Conflicts))
	}
	return nil
}

func (cli *CLI) wcCreate() error {
	wc, err := branchops.CreateWorkingCommit(cli.session.Store(), cli.database, cli.branch, identityPtr(cli.session.Identity()))
	if err != nil {
		return err
	}
	fmt.Printf("%s✓ opened working commit %s%s\n", SuccessColor, wc.Id, ResetColor)
	return nil
}

// mutateWorkingCommit loads the active working commit, applies fn, and
// persists the result.
func (cli *CLI) mutateWorkingCommit(fn func(wc *model.WorkingCommit) error) error {
	wc, err := cli.activeWorkingCommit()
	if err != nil {
		return err
	}
	if err := fn(wc); err != nil {
		return err
	}
	return cli.session.Store().UpdateWorkingCommit(*wc)
}

func (cli *CLI) wcAddClass(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .wc add-class <id> <name>")
	}
	id, name := args[0], args[1]
	return cli.mutateWorkingCommit(func(wc *model.WorkingCommit) error {
		if wc.SchemaData.ClassByID(id) != nil {
			return fmt.Errorf("class already exists: %s", id)
		}
		wc.SchemaData.Classes = append(wc.SchemaData.Classes, model.ClassDef{
			Id:   id,
			Name: name,
		})
		fmt.Printf("%s✓ added class %s%s\n", SuccessColor, id, ResetColor)
		return nil
	})
}

func (cli *CLI) wcAddProp(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: .wc add-prop <classId> <id> <name> <dataType> [required]")
	}
	classId, id, name, dataType := args[0], args[1], args[2], model.DataType(args[3])
	required := len(args) > 4 && args[4] == "required"
	return cli.mutateWorkingCommit(func(wc *model.WorkingCommit) error {
		class := wc.SchemaData.ClassByID(classId)
		if class == nil {
			return fmt.Errorf("class not found: %s", classId)
		}
		class.Properties = append(class.Properties, model.PropertyDef{
			Id: id, Name: name, DataType: dataType, Required: required,
		})
		fmt.Printf("%s✓ added property %s to %s%s\n", SuccessColor, id, classId, ResetColor)
		return nil
	})
}

var quantifierKinds = map[string]model.QuantifierKind{
	"exactly": model.QExactly, "at_least": model.QAtLeast, "at_most": model.QAtMost,
	"range": model.QRange, "optional": model.QOptional, "any": model.QAny, "all": model.QAll,
}

func (cli *CLI) wcAddRel(args []string) error {
	if len(args) < 5 {
		return fmt.Errorf("usage: .wc add-rel <classId> <id> <name> <targetClassId> <quantifierKind> [n]")
	}
	classId, id, name, targetClassId, qKindRaw := args[0], args[1], args[2], args[3], args[4]
	qKind, ok := quantifierKinds[qKindRaw]
	if !ok {
		return fmt.Errorf("unknown quantifier kind: %s", qKindRaw)
	}
	quantifier := model.Quantifier{Kind: qKind}
	if len(args) > 5 {
		n, err := strconv.ParseInt(args[5], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid n: %w", err)
		}
		quantifier.N = n
	}
	return cli.mutateWorkingCommit(func(wc *model.WorkingCommit) error {
		class := wc.SchemaData.ClassByID(classId)
		if class == nil {
			return fmt.Errorf("class not found: %s", classId)
		}
		class.Relationships = append(class.Relationships, model.RelationshipDef{
			Id:          id,
			Name:        name,
			Targets:     []string{targetClassId},
			Quantifier:  quantifier,
			DefaultPool: model.DefaultPool{Kind: model.PoolAll},
		})
		fmt.Printf("%s✓ added relationship %s to %s%s\n", SuccessColor, id, classId, ResetColor)
		return nil
	})
}

func (cli *CLI) wcAddInstance(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .wc add-instance <id> <classId>")
	}
	id, classId := args[0], args[1]
	return cli.mutateWorkingCommit(func(wc *model.WorkingCommit) error {
		for _, inst := range wc.InstancesData {
			if inst.Id == id {
				return fmt.Errorf("instance already exists: %s", id)
			}
		}
		wc.InstancesData = append(wc.InstancesData, model.Instance{
			Id:            id,
			ClassId:       classId,
			Properties:    map[string]model.PropertyValue{},
			Relationships: map[string]model.RelationshipSelection{},
		})
		fmt.Printf("%s✓ added instance %s%s\n", SuccessColor, id, ResetColor)
		return nil
	})
}

func (cli *CLI) wcSetProp(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: .wc set-prop <instanceId> <prop> <jsonValue>")
	}
	instId, propName := args[0], args[1]
	rawValue := strings.Join(args[2:], " ")
	var value any
	if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
		return fmt.Errorf("invalid JSON value: %w", err)
	}
	return cli.mutateWorkingCommit(func(wc *model.WorkingCommit) error {
		var inst *model.Instance
		for i := range wc.InstancesData {
			if wc.InstancesData[i].Id == instId {
				inst = &wc.InstancesData[i]
				break
			}
		}
		if inst == nil {
			return fmt.Errorf("instance not found: %s", instId)
		}
		class := wc.SchemaData.ClassByID(inst.ClassId)
		if class == nil {
			return fmt.Errorf("class not found: %s", inst.ClassId)
		}
		prop := class.PropertyByIdOrName(propName)
		if prop == nil {
			return fmt.Errorf("property not declared on %s: %s", inst.ClassId, propName)
		}
		inst.Properties[prop.Id] = model.LiteralValue(value, prop.DataType)
		fmt.Printf("%s✓ set %s.%s%s\n", SuccessColor, instId, propName, ResetColor)
		return nil
	})
}

func (cli *CLI) cmdValidate() error {
	if err := cli.requireBranch(); err != nil {
		return err
	}
	result, err := branchops.ValidateWorkingCommit(cli.session.Store(), cli.database, cli.branch)
	if err != nil {
		return err
	}
	printValidation(result)
	return nil
}

func printValidation(result model.ValidationResult) {
	if result.Valid {
		fmt.Printf("%s✓ valid (%d instances checked)%s\n", SuccessColor, result.InstanceCount, ResetColor)
	} else {
		fmt.Printf("%s✗ %d error(s)%s\n", ErrorColor, len(result.Errors), ResetColor)
	}
	for _, e := range result.Errors {
		fmt.Printf("  [%s] %s: %s\n", e.ErrorType, e.InstanceId, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning [%s] %s: %s\n", w.WarningType, w.InstanceId, w.Message)
	}
}

func (cli *CLI) cmdCommit(args []string) error {
	if err := cli.requireBranch(); err != nil {
		return err
	}
	message := "commit"
	if len(args) > 0 {
		message = strings.Join(args, " ")
	}
	identity := cli.session.Identity()
	commit, err := branchops.CommitWorkingCommit(cli.session.Store(), cli.database, cli.branch, message, &identity)
	if err != nil {
		if vf, ok := err.(*branchops.ValidationFailedError); ok {
			printValidation(vf.Result)
			return fmt.Errorf("commit blocked by validation errors")
		}
		return err
	}
	fmt.Printf("%s✓ committed %s%s\n", SuccessColor, commit.Hash, ResetColor)
	return nil
}

func (cli *CLI) cmdAbort(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: .abort <workingCommitId>")
	}
	if err := branchops.AbortMerge(cli.session.Store(), args[0]); err != nil {
		return err
	}
	fmt.Printf("%s✓ aborted working commit %s%s\n", SuccessColor, args[0], ResetColor)
	return nil
}

// --- merge & rebase ---

func (cli *CLI) cmdMerge(args []string) error {
	if err := cli.requireDatabase(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: .merge <source> <target>")
	}
	identity := cli.session.Identity()
	wc, conflicts, err := branchops.StartMerge(cli.session.Store(), cli.database, args[0], args[1], &identity)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Printf("%s✓ merge clean, working commit %s ready to commit%s\n", SuccessColor, wc.Id, ResetColor)
		return nil
	}
	fmt.Printf("%s✗ %d conflict(s) on working commit %s%s\n", ErrorColor, len(conflicts), wc.Id, ResetColor)
	for i, c := range conflicts {
		fmt.Printf("  [%d] %s %s %s: left=%v right=%v\n", i, c.ConflictType, c.ResourceType, c.ResourceId, c.LeftValue, c.RightValue)
	}
	return nil
}

func (cli *CLI) cmdResolve(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: .resolve <wcId> <index> <take_left|take_right|take_base>")
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index: %w", err)
	}
	kind := model.ResolutionKind(args[2])
	switch kind {
	case model.TakeLeft, model.TakeRight, model.TakeBase:
	default:
		return fmt.Errorf("unknown resolution kind: %s (use take_left, take_right, or take_base)", args[2])
	}
	wc, err := branchops.ResolveConflicts(cli.session.Store(), args[0], map[int]model.Resolution{idx: {Kind: kind}})
	if err != nil {
		if pr, ok := err.(*branchops.PartiallyResolvedError); ok {
			fmt.Printf("%s… %d/%d conflicts resolved%s\n", SuccessColor, pr.Resolved, pr.Total, ResetColor)
			return nil
		}
		return err
	}
	fmt.Printf("%s✓ merge resolved, working commit %s is active%s\n", SuccessColor, wc.Id, ResetColor)
	return nil
}

func (cli *CLI) cmdRebase(args []string) error {
	if err := cli.requireDatabase(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: .rebase <feature> <target> [force]")
	}
	force := len(args) > 2 && args[2] == "force"
	identity := cli.session.Identity()
	result, err := branchops.Rebase(cli.session.Store(), cli.database, args[0], args[1], &identity, force)
	if err != nil {
		return err
	}
	if !result.Success {
		fmt.Printf("%s✗ %s%s\n", ErrorColor, result.Message, ResetColor)
		for i, c := range result.Conflicts {
			fmt.Printf("  [%d] %s %s %s\n", i, c.ConflictType, c.ResourceType, c.ResourceId)
		}
		return nil
	}
	fmt.Printf("%s✓ %s%s\n", SuccessColor, result.Message, ResetColor)
	return nil
}

// --- reads ---

func (cli *CLI) cmdInstances() error {
	if err := cli.requireBranch(); err != nil {
		return err
	}
	instances, err := cli.session.Store().ListInstancesForBranch(cli.database, cli.branch, nil)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Println("(no instances)")
		return nil
	}
	for _, inst := range instances {
		fmt.Printf("  %-20s class=%s\n", inst.Id, inst.ClassId)
	}
	return nil
}

func (cli *CLI) cmdExpand(args []string) error {
	if err := cli.requireBranch(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: .expand <instanceId>")
	}
	schema, err := cli.session.Store().GetSchema(cli.database, cli.branch, false)
	if err != nil {
		return err
	}
	instances, err := cli.session.Store().ListInstancesForBranch(cli.database, cli.branch, nil)
	if err != nil {
		return err
	}
	data := &model.CommitData{Schema: *schema, Instances: instances}
	expander := expand.New(data)
	inst := data.InstanceByID(args[0])
	if inst == nil {
		return fmt.Errorf("instance not found: %s", args[0])
	}
	expanded, err := expander.ExpandInstance(inst)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(expanded, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (cli *CLI) cmdImport(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: .import <seed.yaml>")
	}
	f, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	db, err := cli.resolveOrCreateDatabase(f.DatabaseName, f.DatabaseDescription)
	if err != nil {
		return err
	}
	cli.database = db.Id
	cli.branch = db.DefaultBranchName

	identity := cli.session.Identity()
	if _, err := branchops.CreateWorkingCommit(cli.session.Store(), cli.database, cli.branch, &identity); err != nil {
		return err
	}
	err = cli.mutateWorkingCommit(func(wc *model.WorkingCommit) error {
		wc.SchemaData = f.Schema
		wc.InstancesData = f.Instances
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s✓ staged %d classes, %d instances from %s%s\n", SuccessColor, len(f.Schema.Classes), len(f.Instances), args[0], ResetColor)
	fmt.Println("  run .validate then .commit to persist")
	return nil
}

func (cli *CLI) resolveOrCreateDatabase(name, description string) (*model.Database, error) {
	if db, err := cli.resolveDatabase(name); err == nil {
		return db, nil
	}
	var desc *string
	if description != "" {
		desc = &description
	}
	db, err := cli.session.Store().CreateDatabase(model.Database{Name: name, Description: desc, DefaultBranchName: "main"})
	if err != nil {
		return nil, err
	}
	if _, err := cli.session.Store().CreateBranch(model.Branch{DatabaseId: db.Id, Name: db.DefaultBranchName, Status: model.BranchActive}); err != nil {
		return nil, err
	}
	return &db, nil
}

// --- shell plumbing ---

func identityPtr(i core.Identity) *core.Identity { return &i }

func (cli *CLI) addToHistory(cmd string) {
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)
	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}
	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}
	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".commitdb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()
	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}
	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}
