package minecraft

import "strings"

const runShTemplate = `#!/usr/bin/env sh

java -jar {jar} --onlyCheckJava || exit 1
java @user_jvm_args.txt -jar {jar} "$@"
`

const runBatTemplate = `@echo off

java -jar {jar} --onlyCheckJava
if %ERRORLEVEL% NEQ 0 (
    echo.
    echo If you're struggling to fix the error above, ask for help on the forums or Discord mentioned in the readme.
    goto :exit
)

java @user_jvm_args.txt -jar {jar} %*

:exit
pause
`

// RunScripts returns run.sh and run.bat launching jar.
func RunScripts(jar string) (sh, bat string) {
	return strings.ReplaceAll(runShTemplate, "{jar}", jar),
		strings.ReplaceAll(runBatTemplate, "{jar}", jar)
}
