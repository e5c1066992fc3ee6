package utils

const LedgerSyncArt = `
 _             _                 ___
| |   ___  __| | __ _  ___ _ _  / __|_  _ _ _  __
| |__/ -_)/ _' |/ _' |/ -_) '_| \__ \ || | ' \/ _|
|____\___|\__,_|\__, |\___|_|   |___/\_, |_||_\__|
                |___/                |__/
`
