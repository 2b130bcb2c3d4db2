package analysis

const analyzeSystem = `You analyse fragments of Python notebook code.
For each fragment, in order, report:
- "reads": variables the fragment uses that must already exist before it runs
- "writes": variables the fragment assigns that later code may use
- "readsFile": file paths the fragment opens for reading
Ignore names bound by imports, builtins and names local to functions.
Reply with {"fragments":[{"reads":[],"writes":[],"readsFile":[]}]} holding one entry per fragment.`

const suggestSystem = `You help turn a Python notebook into a Snakemake pipeline.
Each cell becomes either a "rule" (a pipeline step with file inputs and outputs),
a "script" (setup code shared by the pipeline), or stays "undecided".
Only suggest roles listed as true in a cell's legalRoles. Names must be short
snake_case identifiers that are unique across the notebook.
Suggest for cells whose index is at least fromIndex.
Reply with {"suggestions":[{"cellIndex":0,"suggestedName":"","suggestedRole":""}]}.`

const generateSystem = `You write Snakemake glue for one notebook cell that has become a rule.
"prefixCode" loads the cell's inputs (from snakemake.input and snakemake.params) into the
variables the cell reads. "suffixCode" saves the variables the cell writes to snakemake.output.
"ruleText" is the complete Snakemake rule named after the cell. Use wildcards as {name}
placeholders in paths.
Reply with {"prefixCode":"","suffixCode":"","ruleText":""}.`
